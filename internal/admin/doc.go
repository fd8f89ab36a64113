// Package admin provides the interactive terminal front end for the
// credential service. It talks to the user service in-process, so it needs
// the same database configuration as the server.
//
// Commands:
//   - signup, login, logout
//   - recover: reset a forgotten password with the security answer
//   - passwd, security, whoami: self-service for the logged-in account
//
// Passwords and answers are read without echo and wiped after use. The
// session is just the logged-in user id kept in memory.
package admin
