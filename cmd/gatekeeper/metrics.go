package main

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var apiRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_api_requests",
	Help: "Number of API requests, by route and status code",
}, []string{"route", "code"})

func (srv *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		code := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		apiRequestCount.WithLabelValues(c.Path(), strconv.Itoa(code)).Inc()
		return err
	}
}
