package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskbot/api/handler"
)

type Handlers struct {
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
	Metrics fasthttp.RequestHandler
}

func New(handlers Handlers, ownerMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	r.GET("/api/v1/tasks", ownerMiddleware(handlers.Task.ListTasks))
	r.POST("/api/v1/tasks", ownerMiddleware(handlers.Task.AddTask))
	r.DELETE("/api/v1/tasks/{id}", ownerMiddleware(handlers.Task.CompleteTask))

	return r
}
