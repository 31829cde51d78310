package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMustRegisterIsIdempotent(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("repeated registration panicked: %v", r)
		}
	}()

	MustRegister(prometheus.NewRegistry())
	MustRegister(prometheus.NewRegistry())
}
