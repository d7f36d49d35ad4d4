package loanstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports transaction counters and per-collection sizes.
type Collector struct {
	db        *DB
	reads     *prometheus.Desc
	writes    *prometheus.Desc
	rows      *prometheus.Desc
	indexRows *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(db *DB, namespace string) *Collector {
	return &Collector{
		db:        db,
		reads:     prometheus.NewDesc(prometheus.BuildFQName(namespace, "store", "read_transactions_total"), "Read transactions started.", nil, nil),
		writes:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "store", "write_transactions_total"), "Write transactions started.", nil, nil),
		rows:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "store", "rows"), "Rows per collection.", []string{"collection"}, nil),
		indexRows: prometheus.NewDesc(prometheus.BuildFQName(namespace, "store", "index_rows"), "Index entries per collection.", []string{"collection"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reads
	ch <- c.writes
	ch <- c.rows
	ch <- c.indexRows
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(c.db.ReadCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.writes, prometheus.CounterValue, float64(c.db.WriteCount.Load()))

	stats, err := c.db.Stats()
	if err != nil {
		c.db.logger.Warn("store: collecting stats failed", "err", err)
		return
	}
	for _, coll := range c.db.schema.collections {
		s := stats[coll.name]
		ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(s.Rows), coll.name)
		ch <- prometheus.MustNewConstMetric(c.indexRows, prometheus.GaugeValue, float64(s.IndexRows), coll.name)
	}
}
