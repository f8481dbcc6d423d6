// Package tool defines the Ghost tool surface exposed to MCP clients.
//
// The package is split by concern:
//   - definition: tool and argument schemas advertised to clients
//   - args: decoding of loosely-typed argument bags into typed requests
//   - registry: tool lookup and the per-call dispatch pipeline
//   - posts, posts_lifecycle: post tools, including publish and unpublish
//   - resources, site: pass-through tools for secondary Ghost entities
//
// Every backend call goes through a gateway interface satisfied by
// *ghost.Client, so dispatch behavior can be tested without a live site.
package tool
