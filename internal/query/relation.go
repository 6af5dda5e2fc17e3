package query

import (
	"context"

	"idvault/internal/config"
	"idvault/internal/logging"
	"idvault/internal/sqlbuilder"
)

// relationCall carries one relation command through its handler.
type relationCall struct {
	ctx context.Context
	cmd *Object
	log *logging.Logger
}

type relationVerb func(c *relationCall, db relExec) string

var relationVerbs = map[string]relationVerb{
	"setRelationBusiness2People":    relSet,
	"deleteRelationBusiness2People": relDelete,
	"checkRelationBusiness2People":  relCheck,
	"checkRelationsBusiness2People": relCheckBatch,
	"getRelatedPeoples":             relRelatedPeople,
	"getRelatedBusinesses":          relRelatedBusinesses,
	"getRelatedPeoplesCountAll":     relRelatedPeopleCountAll,
	"getRelatedBusinessesCountAll":  relRelatedBusinessesCountAll,
}

func executeRelation(ctx context.Context, cfg *config.Config, cmd *Object, log *logging.Logger) string {
	verb, ok := cmd.GetString("query")
	if !ok || cfg.Relation == nil {
		return errRequest()
	}
	handler, ok := relationVerbs[verb]
	if !ok {
		return errNotImplemented()
	}
	db, err := openRel(ctx, cfg.Relation)
	if err != nil {
		log.Errorf("open relational store: %v", err)
		return responseErrorMessage(errKindQuery, err.Error())
	}
	defer db.Close()
	return handler(&relationCall{ctx: ctx, cmd: cmd, log: log}, db)
}

// ids returns the relation end patterns; either side may be empty.
func (c *relationCall) ids() (businessID, peopleID string) {
	if v, ok := c.cmd.Get("businessId"); ok {
		businessID, _ = asString(v)
	}
	if v, ok := c.cmd.Get("peopleId"); ok {
		peopleID, _ = asString(v)
	}
	return businessID, peopleID
}

func relSet(c *relationCall, db relExec) string {
	businessID, peopleID := c.ids()
	if businessID == "" || peopleID == "" {
		return errRequest()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.SetRelation(businessID, peopleID)))
}

func relDelete(c *relationCall, db relExec) string {
	businessID, peopleID := c.ids()
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteRelation(sqlbuilder.RelationCondition(businessID, peopleID))))
}

func relCheck(c *relationCall, db relExec) string {
	businessID, peopleID := c.ids()
	return respond(fetchStatement(c.ctx, db, sqlbuilder.CheckRelation(sqlbuilder.RelationCondition(businessID, peopleID))))
}

func relCheckBatch(c *relationCall, db relExec) string {
	list, ok := c.cmd.GetList("relations")
	if !ok {
		return errUnsupportedService("relations list required")
	}
	pairs := make([]sqlbuilder.RelationPair, 0, len(list))
	for _, v := range list {
		obj, ok := v.(*Object)
		if !ok {
			return errUnsupportedService("relations entry is not an object")
		}
		var pair sqlbuilder.RelationPair
		if b, ok := obj.Get("businessId"); ok {
			pair.BusinessID, _ = asString(b)
		}
		if p, ok := obj.Get("peopleId"); ok {
			pair.PeopleID, _ = asString(p)
		}
		pairs = append(pairs, pair)
	}
	stmt, err := sqlbuilder.CheckRelations(pairs)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(fetchStatement(c.ctx, db, stmt))
}

func (c *relationCall) selectAll() bool {
	v, _ := c.cmd.Get("selectAll")
	return truthy(v)
}

func relRelatedPeople(c *relationCall, db relExec) string {
	businessID, _ := c.ids()
	if businessID == "" {
		return errRequest()
	}
	cond := sqlbuilder.RelationCondition(businessID, "")
	return respond(fetchStatement(c.ctx, db,
		sqlbuilder.RelatedPeople(c.selectAll(), cond, commandPagination(c.cmd))))
}

func relRelatedBusinesses(c *relationCall, db relExec) string {
	_, peopleID := c.ids()
	if peopleID == "" {
		return errRequest()
	}
	cond := sqlbuilder.RelationCondition("", peopleID)
	return respond(fetchStatement(c.ctx, db,
		sqlbuilder.RelatedBusinesses(c.selectAll(), cond, commandPagination(c.cmd))))
}

func relRelatedPeopleCountAll(c *relationCall, db relExec) string {
	businessID, _ := c.ids()
	if businessID == "" {
		return errRequest()
	}
	cond := sqlbuilder.RelationCondition(businessID, "")
	return countThenFind(c.ctx, db,
		sqlbuilder.RelationCount(cond),
		sqlbuilder.RelatedPeople(c.selectAll(), cond, commandPagination(c.cmd)))
}

func relRelatedBusinessesCountAll(c *relationCall, db relExec) string {
	_, peopleID := c.ids()
	if peopleID == "" {
		return errRequest()
	}
	cond := sqlbuilder.RelationCondition("", peopleID)
	return countThenFind(c.ctx, db,
		sqlbuilder.RelationCount(cond),
		sqlbuilder.RelatedBusinesses(c.selectAll(), cond, commandPagination(c.cmd)))
}
