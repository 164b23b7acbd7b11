// Package memberauth provides opaque bearer-token authentication with
// per-device session tracking, plus aggregation of a user's paid-membership
// status across pluggable membership provider backends.
//
// Token engine:
//   - Tokens are selector/validator pairs carried on the wire as
//     "{user_id}.{selector}.{validator}". The selector is a non-secret index
//     into the user's token set, the validator is a high-entropy secret that
//     is digested before storage and never persisted in plaintext. Each
//     record maps to one logged-in device; expired records are pruned lazily
//     on the next write to the owning token set.
//
// Membership aggregation:
//   - MembershipProvider wraps one externally installed subscription system
//     behind a capability interface. The Aggregator fans out over available
//     providers, tags every record with the producing provider's name, and
//     stays domain agnostic: apps layer derived flags (premium tiers, feature
//     access) through MembershipDecorator hooks instead of the core learning
//     about plan ids.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the token engine to
//     describe issuance, verification failures, and revocations. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
//
// Everything is constructed explicitly and injected by the host application;
// there are no package level singletons.
package memberauth
