// Package metrics exposes the engine's Prometheus collectors. Each
// component gets a small recorder type satisfying the Metrics interface
// the component declares.
package metrics

const namespace = "reach"

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
