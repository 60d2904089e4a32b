package service

import "github.com/prometheus/client_golang/prometheus"

var (
	entryMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_entry_mutations_total",
			Help: "Total number of committed entry mutations by operation.",
		},
		[]string{"operation"},
	)
	renamePropagations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knowledge_rename_rewrites_total",
			Help: "Total number of referencing entries rewritten after a rename.",
		},
	)
	unlinkPropagations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knowledge_unlinked_references_total",
			Help: "Total number of link set memberships removed because their target was deleted.",
		},
	)
	linksAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knowledge_links_added_total",
			Help: "Total number of links added by extraction.",
		},
	)
	linksRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knowledge_links_removed_total",
			Help: "Total number of links removed by extraction.",
		},
	)
)

func init() {
	prometheus.MustRegister(entryMutations, renamePropagations, unlinkPropagations, linksAdded, linksRemoved)
}
