// Package cli provides the interactive NextShape command-line client.
//
// It wires configuration, local storage, the API transport and the client
// stores, then runs a REPL whose commands are grouped by surface. Surfaces
// mirror the web client's pages (/historique, /calculatrice-calories, ...);
// entering a protected one without a live session sends the user to
// /connexion and returns there after login.
//
// Key features:
//   - Register / Login / Logout, profile edits, account deletion
//   - Verification codes and password reset
//   - BMI and calorie calculation on the working record
//   - Saved progress records: list, refresh, update, delete
//   - A background session probe and client metrics
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
