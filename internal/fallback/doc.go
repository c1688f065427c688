// Package fallback executes embedded automation payloads when no native
// automation engine is reachable — scans on devices without the app's
// full bridge, or emergency links carrying their own steps.
package fallback
