// Package muxhandlers provides ready-made stages for the mux router.
//
// Constructors validate their configuration up front and return the stage
// together with an error, so misconfiguration surfaces at startup:
//
//	cors, err := muxhandlers.CORSStage(muxhandlers.CORSConfig{
//	    AllowedOrigins: []string{"https://example.com"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Use(cors)
//
// # Request pipeline
//
// RequestIDStage, ClientIPStage, LoggingStage and MetricsStage annotate the
// request and record its outcome once the response is finalized.
// JSONBodyStage and URLEncodedBodyStage attach the parsed body to the
// context; RequestSizeLimitStage caps it.
//
// # Access control
//
// BasicAuthStage (plain or bcrypt credentials), CORSStage,
// ContentTypeCheckStage and ThrottleStage guard the routes. Rejections are
// either written directly (401, CORS preflight) or raised as failures for the
// error stages (415, 413).
//
// # Errors
//
// RecoveryStage is an error stage: register it with Router.UseError to answer
// panics with a plain 500 and a logged stack.
package muxhandlers
