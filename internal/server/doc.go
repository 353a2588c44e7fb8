// Package server assembles the HTTP server for the API.
//
// The server wraps the resource routes in a consistent middleware chain of
// request-id propagation, request logging, and security headers so handlers
// all share common instrumentation.
package server
