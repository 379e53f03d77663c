package syncservice

import (
	"fmt"
	"net/http"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/configuration"
	"github.com/form3tech-oss/sync-pact/internal/app/httpresponse"
	"github.com/form3tech-oss/sync-pact/internal/app/state"
	"github.com/form3tech-oss/sync-pact/pkg/syncclient"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	ServiceName     = "sync-service"
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

type Info struct {
	Version string
	Build   string
}

// NewInfo takes the release reported on /version from config.
func NewInfo(config configuration.Config) Info {
	return Info{
		Version: config.ServiceVersion,
		Build:   config.ServiceBuild,
	}
}

type api struct {
	info   Info
	states *state.Registry
	now    func() time.Time
}

// NewServer builds the sync-service HTTP API.
func NewServer(info Info, states *state.Registry) *echo.Echo {
	a := &api{info: info, states: states, now: time.Now}

	server := echo.New()
	server.HideBanner = true

	server.GET("/version", a.versionHandler)
	server.GET("/health", a.healthHandler)
	server.POST("/_pact/provider_states", a.providerStatesHandler)
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return server
}

// Serve starts the sync-service on port in the background.
func Serve(port int, info Info, states *state.Registry) *echo.Echo {
	server := NewServer(info, states)
	go func() {
		address := fmt.Sprintf(":%d", port)
		if err := server.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	return server
}

func (a *api) timestamp() string {
	return a.now().UTC().Format(timestampLayout)
}

func (a *api) versionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, syncclient.VersionResponse{
		Service:   ServiceName,
		Version:   a.info.Version,
		Build:     a.info.Build,
		Timestamp: a.timestamp(),
	})
}

func (a *api) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, syncclient.HealthResponse{
		Status:    "healthy",
		Timestamp: a.timestamp(),
	})
}

func (a *api) providerStatesHandler(c echo.Context) error {
	request := state.Request{}
	if err := c.Bind(&request); err != nil {
		return c.JSON(
			http.StatusBadRequest,
			httpresponse.Errorf("unable to parse provider state. %s", err.Error()),
		)
	}

	payload, err := a.states.Activate(c.Request().Context(), request.Consumer, request.State)
	if errors.Is(err, state.ErrUnknownState) {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("Unknown provider state: %s", request.State))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to set up provider state. %s", err.Error()))
	}
	return c.JSON(http.StatusOK, payload)
}
