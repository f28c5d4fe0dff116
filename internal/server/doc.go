// Package server hosts the Fiber HTTP service and request middleware chain
// for sub-hub. It bootstraps Fiber, attaches request-ID and recover
// middlewares, and exposes the subscription fetch handlers that wrap the
// subfetch orchestrator. Admin cache surfaces live in the routes subpackage;
// keep exports narrow and accept explicit dependencies.
package server
