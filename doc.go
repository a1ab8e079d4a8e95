// Package tensorforce provides building blocks for
// likelihood-ratio policy optimization: experience
// batches, parameterized action distributions, policy
// networks, and environment rollout collection.
//
// The policy-gradient algorithms built on top of these
// primitives live in the pgrad sub-package.
package tensorforce
