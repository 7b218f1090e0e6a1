package servient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/antchfx/jsonquery"
	"github.com/bhmj/jsonslice"
)

// DefaultQueryEvaluator evaluates JSONPath queries (starting with "$") and XPath queries.
// The query is applied to a single element array holding the TD, the same shape a directory searches,
// so a TD satisfies the query if the result is not empty.
type DefaultQueryEvaluator struct{}

func (DefaultQueryEvaluator) Evaluate(query string, td map[string]any) (bool, error) {
	b, err := json.Marshal([]any{td})
	if err != nil {
		return false, fmt.Errorf("error serializing TD: %s", err)
	}
	if strings.HasPrefix(strings.TrimSpace(query), "$") {
		return matchJSONPath(b, query)
	}
	return matchXPath(b, query)
}

func matchJSONPath(doc []byte, query string) (bool, error) {
	result, err := jsonslice.Get(doc, query)
	if err != nil {
		return false, fmt.Errorf("error evaluating jsonpath: %s", err)
	}
	switch string(bytes.TrimSpace(result)) {
	case "", "[]", "{}", "null":
		return false, nil
	}
	return true, nil
}

func matchXPath(doc []byte, query string) (bool, error) {
	root, err := jsonquery.Parse(bytes.NewReader(doc))
	if err != nil {
		return false, fmt.Errorf("error parsing JSON for xpath filtering: %s", err)
	}
	nodes, err := jsonquery.QueryAll(root, query)
	if err != nil {
		return false, fmt.Errorf("error evaluating xpath: %s", err)
	}
	return len(nodes) > 0, nil
}
