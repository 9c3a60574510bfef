package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/biorecords/biorecords/internal/server/handlers"
	"github.com/biorecords/biorecords/internal/server/middleware"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/schema"
)

// idPattern constrains numeric path variables.
const idPattern = "/{id:[0-9]+}"

// apiRouter registers routes on the root router under the API prefix.
// Routes live on the root so that a method mismatch reaches its
// MethodNotAllowedHandler.
type apiRouter struct {
	root   *mux.Router
	prefix string
}

// HandleFunc registers f for the prefixed path.
func (a apiRouter) HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) *mux.Route {
	return a.root.HandleFunc(a.prefix+path, f)
}

// idHandler handles a request for one record.
type idHandler = func(w http.ResponseWriter, r *http.Request, id int64)

// resource groups the CRUD handlers of one endpoint. Nil handlers are not
// routed.
type resource struct {
	list, create     http.HandlerFunc
	get, update, del idHandler
}

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	h := handlers.New(
		s.store,
		s.cache,
		s.broker,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.logger,
		s.counters,
	)

	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Endpoint not found", map[string]string{"path": r.URL.Path})
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method)
	})

	s.registerRoutes(root, h)
	return s.applyMiddleware(root)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(root *mux.Router, h *handlers.Handlers) {
	// Favicon handler (return 204 No Content to avoid 404 logs)
	root.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	root.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	if s.config.MetricsEnabled {
		root.HandleFunc("/metrics", h.HandleMetrics).Methods(http.MethodGet)
	}

	api := apiRouter{root: root, prefix: strings.TrimSuffix(s.config.PathPrefix, "/")}

	api.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	api.HandleFunc("/ready", h.HandleReady).Methods(http.MethodGet)
	if s.config.MetricsEnabled {
		api.HandleFunc("/metrics", h.HandleMetrics).Methods(http.MethodGet)
	}

	s.registerTaxonomy(api, h)
	s.registerConservation(api, h)
	s.registerOccurrence(api, h)
	s.registerFieldwork(api, h)

	// Attachments by id, whatever their owner
	api.HandleFunc("/attachment"+idPattern, h.WithID(h.HandleGetAttachment)).Methods(http.MethodGet)
	api.HandleFunc("/attachment"+idPattern+"/download", h.WithID(h.HandleDownloadAttachment)).Methods(http.MethodGet)
	api.HandleFunc("/attachment"+idPattern, h.WithID(h.HandleDeleteAttachment)).Methods(http.MethodDelete)

	api.HandleFunc("/export/{kind}.csv", h.HandleExport).Methods(http.MethodGet)

	// Admin endpoints
	api.HandleFunc("/admin/stats", h.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/admin/rebuild-names", h.HandleRebuildNames).Methods(http.MethodPost)

	// Real-time endpoints
	api.HandleFunc("/updates/ws", h.HandleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/updates/stream", h.HandleSSE).Methods(http.MethodGet)
}

func (s *Server) registerTaxonomy(api apiRouter, h *handlers.Handlers) {
	routeResource(api, h, "/taxon", resource{
		list: h.HandleListTaxa, create: h.HandleCreateTaxon,
		get: h.HandleGetTaxon, update: h.HandleUpdateTaxon, del: h.HandleDeleteTaxon,
	})
	api.HandleFunc("/taxon"+idPattern+"/conservation-status", h.WithID(h.HandleTaxonStatus)).Methods(http.MethodGet)
	api.HandleFunc("/taxon"+idPattern+"/ancestors", h.WithID(h.HandleTaxonAncestors)).Methods(http.MethodGet)
	api.HandleFunc("/taxon"+idPattern+"/children", h.WithID(h.HandleTaxonChildren)).Methods(http.MethodGet)

	routeResource(api, h, "/vernacular", resource{
		list: h.HandleListVernaculars, create: h.HandleCreateVernacular,
		get: h.HandleGetVernacular, update: h.HandleUpdateVernacular, del: h.HandleDeleteVernacular,
	})
	routeResource(api, h, "/crossreference", resource{
		list: h.HandleListCrossreferences, create: h.HandleCreateCrossreference,
		get: h.HandleGetCrossreference, update: h.HandleUpdateCrossreference, del: h.HandleDeleteCrossreference,
	})

	// Communities are addressed by code
	api.HandleFunc("/community", h.HandleListCommunities).Methods(http.MethodGet)
	api.HandleFunc("/community", h.HandleCreateCommunity).Methods(http.MethodPost)
	api.HandleFunc("/community/{code}", h.HandleGetCommunity).Methods(http.MethodGet)
	api.HandleFunc("/community/{code}", h.HandleUpdateCommunity).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/community/{code}", h.HandleDeleteCommunity).Methods(http.MethodDelete)
	api.HandleFunc("/community/{code}/conservation-status", h.HandleCommunityStatus).Methods(http.MethodGet)
}

func (s *Server) registerConservation(api apiRouter, h *handlers.Handlers) {
	routeResource(api, h, "/conservationlist", resource{
		list: h.HandleListLists, create: h.HandleCreateList,
		get: h.HandleGetList, update: h.HandleUpdateList, del: h.HandleDeleteList,
	})
	routeResource(api, h, "/conservationcategory", resource{
		list: h.HandleListCategories, create: h.HandleCreateCategory,
		get: h.HandleGetCategory, update: h.HandleUpdateCategory, del: h.HandleDeleteCategory,
	})
	routeResource(api, h, "/conservationcriterion", resource{
		list: h.HandleListCriteria, create: h.HandleCreateCriterion,
		get: h.HandleGetCriterion, update: h.HandleUpdateCriterion, del: h.HandleDeleteCriterion,
	})

	for path, kind := range map[string]conservation.SubjectKind{
		"/taxonconservationlisting":     conservation.SubjectTaxon,
		"/communityconservationlisting": conservation.SubjectCommunity,
	} {
		lh := h.Listings(kind)
		routeResource(api, h, path, resource{
			list: lh.HandleList, create: lh.HandleCreate,
			get: lh.HandleGet, update: lh.HandleUpdate, del: lh.HandleDelete,
		})
		api.HandleFunc(path+idPattern+"/transition", h.WithID(lh.HandleTransition)).Methods(http.MethodPost)
		routeAttachments(api, h, path, conservation.OwnerListing)
	}

	routeResource(api, h, "/document", resource{
		list: h.HandleListDocuments, create: h.HandleCreateDocument,
		get: h.HandleGetDocument, update: h.HandleUpdateDocument, del: h.HandleDeleteDocument,
	})
	routeAttachments(api, h, "/document", conservation.OwnerDocument)

	routeResource(api, h, "/conservationthreat", resource{
		list: h.HandleListThreats, create: h.HandleCreateThreat,
		get: h.HandleGetThreat, update: h.HandleUpdateThreat, del: h.HandleDeleteThreat,
	})
	routeResource(api, h, "/conservationaction", resource{
		list: h.HandleListActions, create: h.HandleCreateAction,
		get: h.HandleGetAction, update: h.HandleUpdateAction, del: h.HandleDeleteAction,
	})
	routeResource(api, h, "/conservationactivity", resource{
		list: h.HandleListActivities, create: h.HandleCreateActivity,
		get: h.HandleGetActivity, update: h.HandleUpdateActivity, del: h.HandleDeleteActivity,
	})

	for path, kind := range map[string]store.CategoryKind{
		"/conservationthreatcategory": store.ThreatCategories,
		"/conservationactioncategory": store.ActionCategories,
	} {
		ch := h.ManagementCategories(kind)
		routeResource(api, h, path, resource{
			list: ch.HandleList, create: ch.HandleCreate,
			get: ch.HandleGet, update: ch.HandleUpdate, del: ch.HandleDelete,
		})
	}
}

func (s *Server) registerOccurrence(api apiRouter, h *handlers.Handlers) {
	routeResource(api, h, "/lookup/{table}", resource{
		list: h.HandleListLookups, create: h.HandleCreateLookup,
		get: h.HandleGetLookup, update: h.HandleUpdateLookup, del: h.HandleDeleteLookup,
	})

	areaEndpoints := []struct {
		path     string
		kind     occurrence.Kind
		geomType string
	}{
		{"/occ-areas", occurrence.KindArea, geo.TypePolygon},
		{"/occ-taxon-areas", occurrence.KindTaxon, geo.TypePolygon},
		{"/occ-community-areas", occurrence.KindCommunity, geo.TypePolygon},
		{"/occ-area-points", occurrence.KindArea, geo.TypePoint},
		{"/occ-taxon-points", occurrence.KindTaxon, geo.TypePoint},
		{"/occ-community-points", occurrence.KindCommunity, geo.TypePoint},
	}
	for _, e := range areaEndpoints {
		ah := h.AreaEncounters(e.kind, e.geomType)
		routeResource(api, h, e.path, resource{
			list: ah.HandleList, create: ah.HandleCreate,
			get: ah.HandleGet, update: ah.HandleUpdate, del: ah.HandleDelete,
		})
	}

	routeObservations(api, h, "/occ-observation", schema.DomainOccurrence)
}

func (s *Server) registerFieldwork(api apiRouter, h *handlers.Handlers) {
	routeResource(api, h, "/areas", resource{
		list: h.HandleListAreas, create: h.HandleCreateArea,
		get: h.HandleGetArea, update: h.HandleUpdateArea, del: h.HandleDeleteArea,
	})
	routeResource(api, h, "/surveys", resource{
		list: h.HandleListSurveys, create: h.HandleCreateSurvey,
		get: h.HandleGetSurvey, update: h.HandleUpdateSurvey, del: h.HandleDeleteSurvey,
	})
	routeResource(api, h, "/encounters", resource{
		list: h.HandleListEncounters, create: h.HandleCreateEncounter,
		get: h.HandleGetEncounter, update: h.HandleUpdateEncounter, del: h.HandleDeleteEncounter,
	})
	api.HandleFunc("/encounters"+idPattern+"/transition", h.WithID(h.HandleTransitionEncounter)).Methods(http.MethodPost)

	routeObservations(api, h, "/observations", schema.DomainObservations)

	routeResource(api, h, "/users", resource{
		list: h.HandleListUsers, create: h.HandleCreateUser,
		get: h.HandleGetUser, update: h.HandleUpdateUser, del: h.HandleDeleteUser,
	})
}

// routeResource registers the list, create, detail, update and delete
// routes of path. PUT and PATCH both reach update.
func routeResource(api apiRouter, h *handlers.Handlers, path string, res resource) {
	if res.list != nil {
		api.HandleFunc(path, res.list).Methods(http.MethodGet)
	}
	if res.create != nil {
		api.HandleFunc(path, res.create).Methods(http.MethodPost)
	}
	if res.get != nil {
		api.HandleFunc(path+idPattern, h.WithID(res.get)).Methods(http.MethodGet)
	}
	if res.update != nil {
		api.HandleFunc(path+idPattern, h.WithID(res.update)).Methods(http.MethodPut, http.MethodPatch)
	}
	if res.del != nil {
		api.HandleFunc(path+idPattern, h.WithID(res.del)).Methods(http.MethodDelete)
	}
}

// routeObservations registers the typed observation routes of a domain.
// Fixed paths are registered before the id routes.
func routeObservations(api apiRouter, h *handlers.Handlers, path string, domain schema.Domain) {
	oh := h.Observations(domain)
	api.HandleFunc(path+"/types", oh.HandleTypes).Methods(http.MethodGet)
	api.HandleFunc(path+"/bulk-create", oh.HandleBulkCreate).Methods(http.MethodPost)
	routeResource(api, h, path, resource{
		list: oh.HandleList, create: oh.HandleCreate,
		get: oh.HandleGet, update: oh.HandleUpdate, del: oh.HandleDelete,
	})
	routeAttachments(api, h, path, conservation.OwnerObservation)
}

// routeAttachments registers the attachment list and upload of an owner.
func routeAttachments(api apiRouter, h *handlers.Handlers, path, ownerType string) {
	ah := h.Attachments(ownerType)
	api.HandleFunc(path+idPattern+"/attachments", h.WithID(ah.HandleList)).Methods(http.MethodGet)
	api.HandleFunc(path+idPattern+"/attachments", h.WithID(ah.HandleUpload)).Methods(http.MethodPost)
}

// applyMiddleware wraps handler with the middleware chain, outermost
// first. Wrapping the whole router lets CORS answer preflight requests
// for any route.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logger(s.logger, s.counters),
	}

	// CORS (if enabled)
	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		} else {
			corsConfig.AllowAll = true
		}
		chain = append(chain, middleware.CORS(corsConfig))
	}

	// Authentication (if enabled)
	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig(cfg.PathPrefix)
		authConfig.Enabled = true
		authConfig.HeaderName = cfg.AuthHeader
		authConfig.APIKey = cfg.APIKey
		authConfig.PublicPaths = append(authConfig.PublicPaths, "/health", "/favicon.ico")
		chain = append(chain, middleware.Auth(authConfig, s.logger))
	}

	// Rate limiting (if enabled)
	if s.rateLimiter != nil {
		chain = append(chain, middleware.RateLimit(s.rateLimiter))
	}

	return middleware.Chain(chain...)(handler)
}
