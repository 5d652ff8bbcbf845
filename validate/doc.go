// Package validate implements a prioritized request/response validation
// pipeline with per-rule execution statistics and data-driven security
// policies.
//
// # Core Concepts
//
// Rules are typed (request, response, security, performance) and carry a
// priority; lower priority runs first, registration order breaking ties.
// A request pass runs request, security, and performance rules against a
// Context; a response pass runs response rules against the returned data.
//
//	p := validate.NewPipeline(validate.Config{FailFast: true})
//	p.AddRules(validate.DefaultRules()...)
//	p.AddSecurityRule(validate.SecurityRule{
//	    ID:              "api-policy",
//	    EndpointPattern: `^/api/`,
//	    RequireAuth:     true,
//	    RateLimit:       &validate.RateLimit{MaxRequests: 100, Window: time.Minute},
//	})
//
//	vctx := validate.NewContext("/api/orders", "POST")
//	vctx.Headers = headers
//	vctx.Body = body
//	if res := p.ValidateRequest(vctx); !res.Valid {
//	    // res.Errors holds the failing results
//	}
//
// Only error and critical severity results fail a pass; warnings are
// collected but never invalidate it. With FailFast set, execution stops
// after the first error-severity result. A panicking rule is recovered
// into an error result citing the rule and never takes down the caller.
package validate
