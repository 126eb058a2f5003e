// Package tracer installs the global opentracing tracer selected by the
// environment.
package tracer

import (
	"os"
	"strconv"

	lightstep "github.com/lightstep/lightstep-tracer-go"
	opentracing "github.com/opentracing/opentracing-go"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerlog "github.com/uber/jaeger-client-go/log"
	jaegermetrics "github.com/uber/jaeger-lib/metrics"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// Settings selects a tracer. The zero value disables tracing.
type Settings struct {
	UseJaeger                 bool
	LightstepAccessToken      string
	LightstepProject          string
	LightstepIncludeSensitive bool
}

// FromEnv reads the settings from USE_JAEGER, LIGHTSTEP_ACCESS_TOKEN,
// LIGHTSTEP_PROJECT and LIGHTSTEP_INCLUDE_SENSITIVE.
func FromEnv() Settings {
	useJaeger, _ := strconv.ParseBool(os.Getenv("USE_JAEGER"))
	includeSensitive, _ := strconv.ParseBool(os.Getenv("LIGHTSTEP_INCLUDE_SENSITIVE"))
	return Settings{
		UseJaeger:                 useJaeger,
		LightstepAccessToken:      os.Getenv("LIGHTSTEP_ACCESS_TOKEN"),
		LightstepProject:          os.Getenv("LIGHTSTEP_PROJECT"),
		LightstepIncludeSensitive: includeSensitive,
	}
}

// Init installs the tracer chosen by s as the global tracer. It reports
// whether tracing is enabled.
func Init(serviceName string, s Settings) bool {
	if s.UseJaeger {
		log15.Info("Distributed tracing enabled", "tracer", "jaeger")
		cfg := jaegercfg.Configuration{
			Sampler: &jaegercfg.SamplerConfig{
				Type:  jaeger.SamplerTypeConst,
				Param: 1,
			},
		}
		_, err := cfg.InitGlobalTracer(
			serviceName,
			jaegercfg.Logger(jaegerlog.StdLogger),
			jaegercfg.Metrics(jaegermetrics.NullFactory),
		)
		if err != nil {
			log15.Error("Could not initialize jaeger tracer", "err", err)
			return false
		}
		return true
	}

	if s.LightstepAccessToken != "" {
		log15.Info("Distributed tracing enabled", "tracer", "Lightstep", "project", s.LightstepProject)
		opentracing.InitGlobalTracer(lightstep.NewTracer(lightstep.Options{
			AccessToken: s.LightstepAccessToken,
			UseGRPC:     true,
			Tags: opentracing.Tags{
				lightstep.ComponentNameKey: serviceName,
			},
			DropSpanLogs: !s.LightstepIncludeSensitive,
		}))

		// Ignore warnings from the tracer about SetTag calls with unrecognized value types. The
		// github.com/lightstep/lightstep-tracer-go package calls fmt.Sprintf("%#v", ...) on them, which is fine.
		defaultHandler := lightstep.NewEventLogOneError()
		lightstep.SetGlobalEventHandler(func(e lightstep.Event) {
			if _, ok := e.(lightstep.EventUnsupportedValue); ok {
				// ignore
			} else {
				defaultHandler(e)
			}
		})
		return true
	}
	return false
}
