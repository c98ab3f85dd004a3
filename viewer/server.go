// Package viewer loads images into sessions and serves them over a small
// HTTP inspection API.
package viewer

import (
	"net/http"

	"github.com/gorilla/mux"
	d "github.com/tj/go-debug"
)

var debug = d.Debug("tileview:viewer")

// MakeRouter construct the basic router (no middlewares)
func MakeRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/info", InfoHandler).Methods(http.MethodGet)
	router.HandleFunc("/geometry", GeometryHandler).Methods(http.MethodGet)
	router.HandleFunc("/tile/{level:[0-9]+}/{column:-?[0-9]+}/{row:-?[0-9]+}", TileHandler).Methods(http.MethodGet)
	router.HandleFunc("/tiles/{level:[0-9]+}/{column:-?[0-9]+}/{row:-?[0-9]+}", TileBytesHandler).Methods(http.MethodGet)
	router.HandleFunc("/background", BackgroundHandler).Methods(http.MethodGet)
	router.HandleFunc("/session", ForgetHandler).Methods(http.MethodDelete)

	return router
}
