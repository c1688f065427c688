// Package link implements the link codec and generator: every URL
// representation an automation can travel as (app deep link, universal
// link, web fallback, QR payload) plus the reduced embedded payload
// carried by share and emergency links.
//
// Parse is total: any input string yields a classified Intent or nil,
// never a panic. Classification precedence over the universal path
// patterns is fixed and part of the contract, not an implementation
// detail.
package link
