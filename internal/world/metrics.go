package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - Prometheus-метрики стриминга и мешинга чанков
type Metrics struct {
	loaded      prometheus.Counter
	unloaded    *prometheus.CounterVec
	resident    prometheus.Gauge
	loadQueue   prometheus.Gauge
	unloadQueue prometheus.Gauge
	generate    prometheus.Histogram
	meshing     prometheus.Histogram
	edits       prometheus.Counter
	rebuilds    prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		loaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "chunks_loaded_total",
			Help:      "Количество сгенерированных чанков.",
		}),
		unloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "chunks_unloaded_total",
			Help:      "Количество выгруженных чанков по исходу (discarded/retained).",
		}, []string{"outcome"}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "chunks_resident",
			Help:      "Чанки в памяти, включая деактивированные.",
		}),
		loadQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "load_queue_length",
			Help:      "Длина очереди загрузки.",
		}),
		unloadQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "unload_queue_length",
			Help:      "Длина очереди выгрузки.",
		}),
		generate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "chunk_generate_seconds",
			Help:      "Время генерации ландшафта чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		meshing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "chunk_mesh_seconds",
			Help:      "Время построения геометрии чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		edits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "block_edits_total",
			Help:      "Применённые (не пустые) правки блоков.",
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "chunk_rebuilds_total",
			Help:      "Перестроения геометрии после правок.",
		}),
	}

	collectors := []prometheus.Collector{
		m.loaded, m.unloaded, m.resident, m.loadQueue, m.unloadQueue,
		m.generate, m.meshing, m.edits, m.rebuilds,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeGenerate(d time.Duration) {
	if m != nil {
		m.loaded.Inc()
		m.generate.Observe(d.Seconds())
	}
}

func (m *Metrics) observeMesh(d time.Duration) {
	if m != nil {
		m.meshing.Observe(d.Seconds())
	}
}

func (m *Metrics) observeUnload(retained bool) {
	if m == nil {
		return
	}
	if retained {
		m.unloaded.WithLabelValues("retained").Inc()
	} else {
		m.unloaded.WithLabelValues("discarded").Inc()
	}
}

func (m *Metrics) setQueues(resident, load, unload int) {
	if m != nil {
		m.resident.Set(float64(resident))
		m.loadQueue.Set(float64(load))
		m.unloadQueue.Set(float64(unload))
	}
}

func (m *Metrics) addEdits(edits, rebuilds int) {
	if m != nil {
		m.edits.Add(float64(edits))
		m.rebuilds.Add(float64(rebuilds))
	}
}
