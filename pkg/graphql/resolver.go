package graphql

import (
	"errors"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/transferd/pkg/txlog"
)

// resolver binds GraphQL query fields to the transaction log store.
type resolver struct {
	log *txlog.Store
}

// Status resolves the `status(transactionId)` query.
func (r *resolver) Status(p graphql.ResolveParams) (interface{}, error) {
	txnID, _ := p.Args["transactionId"].(string)
	if txnID == "" {
		return nil, errors.New("transactionId is required")
	}
	txn, ok := r.log.Get(txnID)
	if !ok {
		return nil, nil
	}
	return txn, nil
}

// History resolves the `history(accountId, limit, offset)` query.
func (r *resolver) History(p graphql.ResolveParams) (interface{}, error) {
	accountID, _ := p.Args["accountId"].(string)
	if accountID == "" {
		return nil, errors.New("accountId is required")
	}
	limit, _ := p.Args["limit"].(int)
	offset, _ := p.Args["offset"].(int)

	return r.log.History(accountID, limit, offset), nil
}
