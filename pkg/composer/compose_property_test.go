package composer

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/theory-cloud/apistack/pkg/policy"
)

func genSettings() *rapid.Generator[Settings] {
	return rapid.Custom(func(t *rapid.T) Settings {
		return Settings{
			Environment: rapid.StringMatching(`[a-z][a-z0-9]{0,8}(-[a-z0-9]{1,6}){0,2}`).Draw(t, "env"),
			Account:     rapid.StringMatching(`[0-9]{12}`).Draw(t, "account"),
			Region:      rapid.SampledFrom([]string{"us-east-1", "us-west-2", "eu-west-1", "ap-southeast-2", "sa-east-1"}).Draw(t, "region"),
			AssetDir:    rapid.StringMatching(`/[a-z]{1,8}(/[a-z]{1,8}){0,3}`).Draw(t, "asset"),
		}
	})
}

// Composing twice from identical settings yields deeply equal graphs.
func TestProperty_ComposeIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genSettings().Draw(t, "settings")

		first, err := Compose(s)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		second, err := Compose(s)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("graphs differ:\n%#v\n%#v", first, second)
		}
	})
}

// Every derived name carries the environment identifier as its prefix.
func TestProperty_NamesPrefixedByEnvironment(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genSettings().Draw(t, "settings")
		g, err := Compose(s)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		for _, name := range g.Names() {
			if !strings.HasPrefix(name, s.Environment+"-") {
				t.Fatalf("name %q not prefixed by %q", name, s.Environment)
			}
		}
		if !strings.HasPrefix(g.LogSink.Name, "/aws/apigateway/"+s.Environment+"-") {
			t.Fatalf("log sink %q not prefixed by %q", g.LogSink.Name, s.Environment)
		}
	})
}

// The policy never contains a deny and every integration targets the one function.
func TestProperty_GraphInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g, err := Compose(genSettings().Draw(t, "settings"))
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		for _, st := range g.Policy.Document.Statements {
			if st.Effect != policy.Allow {
				t.Fatalf("non-allow statement: %+v", st)
			}
		}
		if g.Gateway.Default.Function != g.Function.ID || g.Gateway.Proxy.Integration.Function != g.Function.ID {
			t.Fatalf("integration targets differ from function %q", g.Function.ID)
		}
		if !strings.Contains(g.Layer.ARN, ":"+g.Region+":") {
			t.Fatalf("layer %q not in region %q", g.Layer.ARN, g.Region)
		}
	})
}
