// Package graphql exposes the coordinator's transaction log as a
// read-only GraphQL query surface: transfer status by id, and an
// account's transfer history. There are no mutations — every state
// change flows through the REST /transfers endpoint and its 2PC
// machinery, never through GraphQL.
package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/mnohosten/transferd/pkg/txlog"
)

// Schema builds the GraphQL schema backed by log.
func Schema(log *txlog.Store) (graphql.Schema, error) {
	transactionType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Transaction",
		Description: "One row of the coordinator's transaction log",
		Fields: graphql.Fields{
			"transactionId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).TransactionID, nil
				},
			},
			"sourceAccountId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).SourceAccountID, nil
				},
			},
			"destinationAccountId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).DestinationAccountID, nil
				},
			},
			"amount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).Amount.String(), nil
				},
			},
			"status": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(*txlog.Transaction).Status), nil
				},
			},
			"retryAttempt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).RetryAttempt, nil
				},
			},
			"createdAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.DateTime),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).CreatedAt, nil
				},
			},
			"updatedAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.DateTime),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*txlog.Transaction).UpdatedAt, nil
				},
			},
		},
	})

	resolver := &resolver{log: log}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"status": &graphql.Field{
				Type:        transactionType,
				Description: "Look up a single transaction by id",
				Args: graphql.FieldConfigArgument{
					"transactionId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: resolver.Status,
			},
			"history": &graphql.Field{
				Type:        graphql.NewList(transactionType),
				Description: "List transactions touching an account, newest first",
				Args: graphql.FieldConfigArgument{
					"accountId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: resolver.History,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}
