package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPI_SingleAllowStatementOverBothNamespaces(t *testing.T) {
	doc := API("prod-api-policy")

	require.NoError(t, doc.Validate())
	require.Len(t, doc.Statements, 1)

	st := doc.Statements[0]
	require.Equal(t, Allow, st.Effect)
	require.Equal(t, []string{"appconfig", "dynamodb"}, st.Namespaces())
	require.Contains(t, st.Resources, "*")
}

func TestValidate_RejectsDeny(t *testing.T) {
	doc := API("p")
	doc.Statements = append(doc.Statements, Statement{
		Effect:    Deny,
		Actions:   []string{"dynamodb:DeleteTable"},
		Resources: []string{"*"},
	})

	err := doc.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDenyStatement))
}

func TestValidate_RejectsDuplicateInAnyOrder(t *testing.T) {
	doc := API("p")
	doc.Statements = append(doc.Statements, Statement{
		Effect:    Allow,
		Actions:   []string{"dynamodb:*", "appconfig:*"},
		Resources: []string{"arn:aws:dynamodb:*:*:table/*", "*"},
	})

	require.ErrorIs(t, doc.Validate(), ErrDuplicateStatement)
}

func TestValidate_RejectsEmpty(t *testing.T) {
	doc := Document{Statements: []Statement{{Effect: Allow}}}
	require.ErrorIs(t, doc.Validate(), ErrEmptyStatement)
}

func TestClone_IsIndependent(t *testing.T) {
	doc := API("p")
	cp := doc.Clone()
	cp.Statements[0].Actions[0] = "s3:*"

	require.Equal(t, "appconfig:*", doc.Statements[0].Actions[0])
}
