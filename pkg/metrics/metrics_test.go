package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "voiceprint")
				So(manager.subsystem, ShouldEqual, "client")
			})
		})

		Convey("When creating with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sdk"),
				WithHistogramBuckets([]float64{1, 2}),
				WithCustomLabels(map[string]string{"env": "test", "region": ""}),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the options are applied", func() {
				So(manager.customLabels, ShouldNotContainKey, "region")
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "sdk")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2})
				So(manager.customLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When creating with empty buckets and nil labels", func() {
			manager := NewManager(
				WithHistogramBuckets(nil),
				WithCustomLabels(nil),
				WithNamespace(""),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
				So(manager.customLabels, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "voiceprint")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When recording requests", func() {
			So(manager.RecordRequest("list_voiceprints", "GET", OutcomeSuccess, 12), ShouldBeNil)
			So(manager.RecordRequest("list_voiceprints", "GET", OutcomeSuccess, 8), ShouldBeNil)
			So(manager.RecordRequest("create_voiceprint", "POST", OutcomeError, 30), ShouldBeNil)

			Convey("Then counters are split by labels", func() {
				So(testutil.ToFloat64(manager.requests.WithLabelValues("list_voiceprints", "GET", OutcomeSuccess)), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.requests.WithLabelValues("create_voiceprint", "POST", OutcomeError)), ShouldEqual, 1)
			})
		})

		Convey("When recording an unknown outcome", func() {
			err := manager.RecordRequest("x", "GET", "maybe", 1)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrUnknownOutcome), ShouldBeTrue)
			})
		})

		Convey("When recording errors, cache lookups and toasts", func() {
			manager.RecordError("upload_audio", "parse")
			manager.RecordCacheLookup(CacheHit)
			manager.RecordCacheLookup(CacheMiss)
			manager.RecordCacheLookup(CacheMiss)
			manager.RecordToast()
			manager.RecordUploadBytes(1024)

			Convey("Then each collector reflects it", func() {
				So(testutil.ToFloat64(manager.errorsByKind.WithLabelValues("upload_audio", "parse")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.cacheLookups.WithLabelValues(CacheMiss)), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.toasts), ShouldEqual, 1)
			})
		})

		Convey("When recording stub traffic", func() {
			manager.RecordHTTPRequest("list", "GET", "200", 3)
			manager.UpdateStoredVoicePrints(7)

			Convey("Then the stub collectors reflect it", func() {
				So(testutil.ToFloat64(manager.httpRequests.WithLabelValues("list", "GET", "200")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.storedVoicePrints), ShouldEqual, 7)
			})
		})
	})
}

func TestMetricsDisabled(t *testing.T) {
	Convey("Given a disabled manager", t, func() {
		manager := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("Then recording is a no-op", func() {
			So(manager.RecordRequest("x", "GET", "bogus", 1), ShouldBeNil)
			manager.RecordToast()
			So(testutil.ToFloat64(manager.toasts), ShouldEqual, 0)
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Package-level recorders use the custom registry", t, func() {
		So(func() {
			_ = RecordRequest("delete_voiceprint", "DELETE", OutcomeSuccess, 4)
			RecordError("delete_voiceprint", "server")
			RecordCacheLookup(CacheHit)
			RecordUploadBytes(2048)
			RecordToast()
			RecordHTTPRequest("delete", "DELETE", "200", 1)
			UpdateStoredVoicePrints(1)
		}, ShouldNotPanic)

		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)
		So(len(families), ShouldBeGreaterThan, 0)
	})
}

func TestInit(t *testing.T) {
	Convey("Given the package-level manager is rebuilt with options", t, func() {
		before := GetRegistry()
		m := Init(WithNamespace("vp"), WithSubsystem("cli"), WithCustomLabels(map[string]string{"env": "test"}))
		defer Init()

		Convey("Then recorders write to the new registry under the new names", func() {
			So(GetRegistry(), ShouldNotEqual, before)
			So(RecordRequest("list_voiceprints", "GET", OutcomeSuccess, 3), ShouldBeNil)
			So(testutil.ToFloat64(m.requests.WithLabelValues("list_voiceprints", "GET", OutcomeSuccess)), ShouldEqual, 1)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(names, ShouldContain, "vp_cli_requests_total")
			So(names, ShouldContain, "vp_stub_voiceprints")
		})

		Convey("Then a disabled manager records nothing", func() {
			m := Init(WithMetricsEnabled(false))
			RecordToast()
			So(testutil.ToFloat64(m.toasts), ShouldEqual, 0)
		})
	})
}
