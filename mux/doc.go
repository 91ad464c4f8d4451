// Package mux implements a request dispatcher built from an ordered route
// table and a sequential middleware chain.
//
// # Routes
//
// Routes are matched in registration order; the first route whose method
// and pattern match wins. Patterns are made of literal segments, named
// parameters and an optional trailing wildcard:
//
//	r := mux.NewRouter()
//	r.Get("/api/users", listUsers)
//	r.Get("/api/users/:id(int)", showUser)
//	r.Get("/files/*path", serveFile)
//
// Segment counts must agree unless the pattern ends with a wildcard. A
// single trailing slash on the request path is ignored and GET routes also
// answer HEAD requests.
//
// Constraints in parentheses are either a macro (int, uuid, slug, alpha,
// alphanum, hex, date) or a raw regular expression.
//
// # Stages
//
// Every link of the chain, handlers included, is a StageFunc returning a
// Result:
//
//	func auth(c *mux.Context) mux.Result {
//	    if c.Header().Get("Authorization") == "" {
//	        return mux.Fail(mux.NewHTTPError(http.StatusUnauthorized, ""))
//	    }
//	    return mux.Next()
//	}
//
// Next continues, Halt stops after the stage finalized the response, and
// Fail routes the error to the error stages. Panics are recovered and
// reported as *PanicError.
//
// Stages run in this order:
//
//  1. global stages (Router.Use), before routing;
//  2. scoped stages (Router.UsePrefix, Group.Use) whose prefix covers the
//     request path;
//  3. route stages (Route.Use) and the handler of the matched route;
//  4. the not-found stage when nothing matched or the handler returned Next
//     without writing.
//
// Context.OnFinish registers callbacks that run once the response is
// finalized, which is how logging and metrics stages observe the status.
//
// # Errors
//
// Error stages registered with UseError are tried in registration order.
// When none finalizes the response, the default error stage writes a JSON
// body with the status from StatusCode: 4xx messages are returned to the
// caller, 5xx details are logged and replaced with a generic message.
//
// # Responses
//
// The helpers JSON, HTML, Text, Render, NoContent and Redirect finalize the
// response and return Halt. Finalizing twice returns Fail with
// ErrResponseFinalized; the first response is kept and the attempt is
// logged.
//
// # Binding
//
// Bind decodes the body attached by a body parsing stage (or the query
// string) into a struct and validates its `binding` tags:
//
//	type CreateUserRequest struct {
//	    Name  string `json:"name" form:"name" binding:"required"`
//	    Email string `json:"email" form:"email" binding:"required,email"`
//	}
//
// # Interop
//
// Adapt runs net/http middleware that does its work before calling next as a
// stage; WrapHandler serves a plain http.Handler as a terminal stage.
package mux
