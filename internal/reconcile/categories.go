package reconcile

import (
	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/report"
)

// categoryAssignments holds type or class values keyed at two levels. A
// subcategory-specific value beats the value of its category.
type categoryAssignments struct {
	byCategory    map[string]string
	bySubcategory map[core.CategoryKey]string
}

func newCategoryAssignments() categoryAssignments {
	return categoryAssignments{byCategory: map[string]string{}, bySubcategory: map[core.CategoryKey]string{}}
}

// fromConfig reads a value -> ["Cat" | "Cat:Sub"] directive. config.Validate
// rejects a category listed under two values.
func (a categoryAssignments) fromConfig(directive map[string]config.StringList) {
	for _, value := range sortedKeys(directive) {
		for _, pair := range directive[value] {
			key := core.SplitCategoryPair(pair)
			if key.Subcategory == "" {
				a.byCategory[key.Category] = value
			} else {
				a.bySubcategory[key] = value
			}
		}
	}
}

// lookup applies root entries first, then specific ones.
func (a categoryAssignments) lookup(key core.CategoryKey) (string, bool) {
	if v, ok := a.bySubcategory[key]; ok {
		return v, true
	}
	v, ok := a.byCategory[key.Category]
	return v, ok
}

// categoryResolver decides the type and class of every category.
type categoryResolver struct {
	reportTypes  map[string]core.TxnType
	types        categoryAssignments
	classes      categoryAssignments
	typeDefault  core.TxnType
	classDefault core.TxnClass
}

func newCategoryResolver(cfg *config.Config) *categoryResolver {
	r := &categoryResolver{
		reportTypes:  map[string]core.TxnType{},
		types:        newCategoryAssignments(),
		classes:      newCategoryAssignments(),
		typeDefault:  core.TxnTypeExpense,
		classDefault: core.TxnClassDiscretionary,
	}
	if t, ok := core.ParseTxnType(cfg.CategoryTypeDefault); ok {
		r.typeDefault = t
	}
	if cfg.CategoryClassDefault != "" {
		r.classDefault = core.TxnClass(cfg.CategoryClassDefault)
	}
	r.types.fromConfig(cfg.CategoryTypes)
	r.classes.fromConfig(cfg.CategoryClasses)
	return r
}

// learnReport records the section each category appeared under in a spending
// report. The section applies to the whole category. A duplicate row within
// the report replaces the earlier one; across reports the earlier report
// keeps precedence.
func (r *categoryResolver) learnReport(rep *report.Report) {
	rows := map[string]core.TxnType{}
	for _, rec := range rep.Categories {
		rows[rec.Category] = rec.Type
	}
	for cat, typ := range rows {
		if _, ok := r.reportTypes[cat]; !ok {
			r.reportTypes[cat] = typ
		}
	}
}

func (r *categoryResolver) typeOf(key core.CategoryKey) core.TxnType {
	if v, ok := r.types.lookup(key); ok {
		if t, valid := core.ParseTxnType(v); valid {
			return t
		}
	}
	if t, ok := r.reportTypes[key.Category]; ok {
		return t
	}
	return r.typeDefault
}

// classOf defaults to the type for everything but expenses.
func (r *categoryResolver) classOf(key core.CategoryKey, typ core.TxnType) core.TxnClass {
	if v, ok := r.classes.lookup(key); ok {
		return core.TxnClass(v)
	}
	if typ != core.TxnTypeExpense {
		return core.TxnClass(typ)
	}
	return r.classDefault
}

func (r *categoryResolver) resolve(key core.CategoryKey) (core.TxnType, core.TxnClass) {
	typ := r.typeOf(key)
	return typ, r.classOf(key, typ)
}
