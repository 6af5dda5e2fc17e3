package sqlbuilder

import (
	"fmt"
	"strings"
)

// Relation store column names. The relation table is cross-tenant: one fixed
// schema and table for every business/person pair.
const (
	RelationBusinessColumn = "bid"
	RelationPeopleColumn   = "pid"
)

// RelationPair is one business/person pair inside a batch existence check.
type RelationPair struct {
	BusinessID string
	PeopleID   string
}

func relationTable() Table {
	return Table{Schema: RelationSchema, Name: RelationTable}
}

// RelationCondition builds the LIKE predicate matching the supplied ids.
// Either id may be empty; an empty id drops its term, and both empty yields
// the both-terms form with empty bindings, matching the command contract.
func RelationCondition(businessID, peopleID string) Condition {
	bidTerm := QuoteIdent(RelationBusinessColumn) + " LIKE " + placeholder("businessId")
	pidTerm := QuoteIdent(RelationPeopleColumn) + " LIKE " + placeholder("peopleId")
	switch {
	case businessID != "" && peopleID == "":
		return Condition{SQL: bidTerm, Args: map[string]any{"businessId": businessID}}
	case peopleID != "" && businessID == "":
		return Condition{SQL: pidTerm, Args: map[string]any{"peopleId": peopleID}}
	default:
		return Condition{
			SQL:  bidTerm + " AND " + pidTerm,
			Args: map[string]any{"businessId": businessID, "peopleId": peopleID},
		}
	}
}

// SetRelation links a business to a person.
func SetRelation(businessID, peopleID string) Statement {
	text := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s);",
		relationTable().Qualified(),
		QuoteIdent(RelationBusinessColumn), QuoteIdent(RelationPeopleColumn),
		placeholder("businessId"), placeholder("peopleId"))
	return single(text, map[string]any{"businessId": businessID, "peopleId": peopleID})
}

// DeleteRelation removes every pair matching the condition.
func DeleteRelation(cond Condition) Statement {
	text := joinSQL("DELETE FROM "+relationTable().Qualified(), whereClause(cond)) + ";"
	return single(text, cond.Args)
}

// CheckRelation tests whether at least one pair matches the condition.
func CheckRelation(cond Condition) Statement {
	text := joinSQL("SELECT EXISTS (SELECT 1 FROM "+relationTable().Qualified(), whereClause(cond)) + ");"
	return single(text, cond.Args)
}

// CheckRelations tests a batch of pairs in one round trip, one EXISTS column
// per pair joined by UNION ALL, result rows in input order.
func CheckRelations(pairs []RelationPair) (Statement, error) {
	if len(pairs) == 0 {
		return Statement{}, badQueryf("relation check without pairs")
	}
	args := map[string]any{}
	selects := make([]string, len(pairs))
	for i, pair := range pairs {
		bidName := fmt.Sprintf("col_bid_%d", i+1)
		pidName := fmt.Sprintf("col_pid_%d", i+1)
		args[bidName] = pair.BusinessID
		args[pidName] = pair.PeopleID
		selects[i] = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s LIKE %s AND %s LIKE %s)",
			relationTable().Qualified(),
			QuoteIdent(RelationBusinessColumn), placeholder(bidName),
			QuoteIdent(RelationPeopleColumn), placeholder(pidName))
	}
	return single(strings.Join(selects, " UNION ALL ")+";", args), nil
}

// RelatedPeople lists the people related to a business; selectAll widens the
// projection from the person column to every column.
func RelatedPeople(selectAll bool, cond Condition, page *Pagination) Statement {
	return relatedQuery(RelationPeopleColumn, selectAll, cond, page)
}

// RelatedBusinesses lists the businesses related to a person.
func RelatedBusinesses(selectAll bool, cond Condition, page *Pagination) Statement {
	return relatedQuery(RelationBusinessColumn, selectAll, cond, page)
}

func relatedQuery(column string, selectAll bool, cond Condition, page *Pagination) Statement {
	projection := QuoteIdent(column)
	if selectAll {
		projection = "*"
	}
	text := joinSQL(
		"SELECT "+projection+" FROM "+relationTable().Qualified(),
		whereClause(cond),
		"ORDER BY "+QuoteIdent(column)+" ASC",
		limitOffsetClause(page, nil),
	) + ";"
	return single(text, cond.Args)
}

// RelationCount counts pairs matching the condition.
func RelationCount(cond Condition) Statement {
	return CountAllItems(relationTable(), cond)
}
