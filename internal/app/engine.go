package app

import (
	"time"

	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
)

// Engine bundles the services every binary wires the same way.
type Engine struct {
	Executor   *reconcile.Executor
	Classifier *reconcile.Classifier
	Vocabulary *EquipmentVocabulary
	Commands   *CommandService
	Queries    *QueryService
}

// NewEngine wires matcher, planner, executor and classifier over store.
// cache may be nil; the vocabulary then reads catalog on every plan.
func NewEngine(store domain.Store, catalog domain.EquipmentCatalog, cache domain.Cache, policy reconcile.Policy, ttl time.Duration) *Engine {
	vocab := NewEquipmentVocabulary(catalog, cache, ttl)
	matcher := reconcile.NewMatcher(policy)
	ex := reconcile.NewExecutor(store, matcher, reconcile.NewPlanner(vocab, policy))
	clf := reconcile.NewClassifier(store, matcher)
	return &Engine{
		Executor:   ex,
		Classifier: clf,
		Vocabulary: vocab,
		Commands:   NewCommandService(store, ex, clf, cache),
		Queries:    NewQueryService(store, cache, ttl),
	}
}
