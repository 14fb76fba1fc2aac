// Package router assembles the gin engine and the versioned route groups.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Router mounts route groups under /api/<version>
type Router struct {
	engine     *gin.Engine
	version    string
	middleware []gin.HandlerFunc
	groups     []*DomainGroup
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix, "v1" by default
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

// WithAPIMiddleware adds middleware to /api only. Routes on the bare engine,
// such as /health, do not run it.
func WithAPIMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.middleware = append(r.middleware, middleware...) }
}

// NewRouter creates a Router for engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues groups for Setup
func (r *Router) Register(groups ...*DomainGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Prefix is the path every registered group is mounted under
func (r *Router) Prefix() string {
	return "/api/" + r.version
}

// Setup mounts the queued groups on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.Prefix(), r.middleware...)
	for _, g := range r.groups {
		g.mount(api)
	}
}

// DomainGroup is a named set of routes under one prefix, with optional nested groups
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*DomainGroup
}

type route struct {
	method, path string
	handlers     []gin.HandlerFunc
}

// NewDomainGroup creates an empty group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Name identifies the group in logs and tests
func (g *DomainGroup) Name() string { return g.name }

// Use adds middleware that runs for this group and its children
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle adds a route
func (g *DomainGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: relativePath, handlers: handlers})
	return g
}

func (g *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, p, h...)
}

func (g *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, p, h...)
}

func (g *DomainGroup) PUT(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPut, p, h...)
}

func (g *DomainGroup) DELETE(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodDelete, p, h...)
}

// Group nests a child group under this one and returns the child
func (g *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

func (g *DomainGroup) mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		rg.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.mount(rg)
	}
}

// Routes lists "METHOD /path" for the group and its children, relative to the mount point
func (g *DomainGroup) Routes() []string {
	var out []string
	g.walk("/", func(method, full string) { out = append(out, method+" "+full) })
	return out
}

func (g *DomainGroup) walk(parent string, visit func(method, full string)) {
	base := path.Join(parent, g.prefix)
	for _, rt := range g.routes {
		full := base
		if rt.path != "" {
			full = path.Join(base, rt.path)
		}
		visit(rt.method, full)
	}
	for _, child := range g.children {
		child.walk(base, visit)
	}
}
