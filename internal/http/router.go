package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps the standard http.ServeMux (no third-party router: the route
// surface is a dozen patterns).
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterPropertyRoutes wires the REST surface:
//
//	GET    /properties                      list (skip/limit/rented/unpaid/expiring_days/search/order_by)
//	POST   /properties                      create
//	GET    /properties/export               xlsx export
//	POST   /properties/import               xlsx import
//	GET    /properties/{id}                 read
//	PUT    /properties/{id}                 partial update
//	DELETE /properties/{id}                 delete
//	POST   /properties/{id}/image           upload + link
//	GET    /properties/{id}/image/signed-url
//	DELETE /properties/{id}/image
//	(same trio for /contract)
//	GET    /stats
func (r *Router) RegisterPropertyRoutes(p *PropertiesHandler, d *DocumentsHandler, e *ExcelHandler) {
	r.Handle("/properties", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			p.List(w, req)
		case http.MethodPost:
			p.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/properties/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/properties/")
		switch rest {
		case "export":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			e.Export(w, req)
			return
		case "import":
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			e.Import(w, req)
			return
		}

		parts := strings.Split(rest, "/")
		id := parseID(parts[0])
		if id <= 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if len(parts) == 1 {
			switch req.Method {
			case http.MethodGet:
				p.Get(w, req, id)
			case http.MethodPut:
				p.Update(w, req, id)
			case http.MethodDelete:
				p.Delete(w, req, id)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
			return
		}

		d.Dispatch(w, req, id, parts[1:])
	})

	r.Handle("/stats", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.Stats(w, req)
	})

	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "online"})
	})
}

func parseID(s string) int64 {
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		id = id*10 + int64(c-'0')
		if id > 1<<60 {
			return 0
		}
	}
	if s == "" {
		return 0
	}
	return id
}
