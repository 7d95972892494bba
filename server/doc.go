/*
Package server exposes recurrence editing sessions over HTTP with JSON bodies.

# Basic Usage

	engine := recurrence.NewEngine()
	sessions := memory.New(memory.DefaultConfig)
	ed := editor.New(engine, sessions)
	http.ListenAndServe(":8080", server.NewRouter(ed))

# URL Scheme

  - POST   /sessions                                 open a session from rule text
  - POST   /users/<userid>/objects/<objectid>/sessions open a session on a stored event
  - GET    /sessions/<id>                            expand at the current multiplier
  - POST   /sessions/<id>/more                       grow the horizon ("show more")
  - POST   /sessions/<id>/toggle                     flip exclusions, body {"indices": [...]}
  - POST   /sessions/<id>/select                     exclude exactly the given indices
  - POST   /sessions/<id>/submit                     serialize, body of the reply is {"rule": "..."}
  - DELETE /sessions/<id>                            discard the session

Occurrence indices refer to the rows of the most recent view. Exclusions are
remembered by instant, so they survive "show more".

# Errors

Errors are returned as {"error": "..."}. Unknown sessions and objects map to
404, invalid input (unparseable JSON, unknown time zone, row index out of
range, unparseable rule on submit) to 400, a calendar object changed since
the session was opened to 412 and everything else to 500.

# Authentication

Wrap the router with auth.Middleware to require basic authentication. Object
routes are then limited to the user named in the path, and a session is only
visible to the user that opened it.
*/
package server
