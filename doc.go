// Package gateway defines the shared types and service contracts of the
// edge request gateway: the pipeline that runs in front of every page
// and API request and handles rate limiting, canonical-host redirection,
// email verification, session authentication with single-flight token
// refresh, and locale resolution.
//
// Concrete pieces live in subpackages: pipeline/ assembles the
// interceptor chain, chain/ is the combinator, ratelimit/, hostnorm/,
// verifyemail/, session/ and locale/ are the stages, identity/ talks to
// the identity service and fake/ replaces it in tests.
package gateway
