package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrEmptyResponse is returned when the service answers with no text
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrInvalidResponse is returned when the text is not a schema-shaped JSON object
	ErrInvalidResponse = errors.New("response does not match rule set schema")
)

// Parse decodes the model's text into a RuleSet. The text must be a
// single JSON object, optionally inside one markdown fence. It checks only
// the structure the schema declares; values are passed through untouched.
func Parse(raw string) (*RuleSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	jsonStr, ok := StripFence(raw)
	if !ok {
		return nil, fmt.Errorf("%w: malformed markdown fence", ErrInvalidResponse)
	}
	if !gjson.Valid(jsonStr) {
		// Models writing Windows paths emit \U, \P and friends; repair once
		jsonStr = sanitizeJSON(jsonStr)
		if !gjson.Valid(jsonStr) {
			return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidResponse)
		}
	}

	if err := checkShape(gjson.Parse(jsonStr)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var rs RuleSet
	if err := json.Unmarshal([]byte(jsonStr), &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &rs, nil
}

func checkShape(doc gjson.Result) error {
	if !doc.IsObject() {
		return errors.New("top level is not an object")
	}
	for _, key := range []string{"title", "description", "logTemplate"} {
		if err := requireString(doc, key); err != nil {
			return err
		}
	}
	if v := doc.Get("initScript"); v.Exists() && v.Type != gjson.String && v.Type != gjson.Null {
		return errors.New(`"initScript" is not a string`)
	}

	list := doc.Get("rules")
	if !list.IsArray() {
		return errors.New(`"rules" is missing or not an array`)
	}
	var ruleErr error
	list.ForEach(func(idx, rule gjson.Result) bool {
		if !rule.IsObject() {
			ruleErr = fmt.Errorf("rules[%d] is not an object", idx.Int())
			return false
		}
		for _, key := range []string{"category", "rule", "importance"} {
			if err := requireString(rule, key); err != nil {
				ruleErr = fmt.Errorf("rules[%d]: %w", idx.Int(), err)
				return false
			}
		}
		if imp := Importance(rule.Get("importance").String()); !imp.Valid() {
			ruleErr = fmt.Errorf("rules[%d]: importance %q not in low/medium/high", idx.Int(), imp)
			return false
		}
		for _, key := range []string{"commandSnippet", "contextTip"} {
			if v := rule.Get(key); v.Exists() && v.Type != gjson.String && v.Type != gjson.Null {
				ruleErr = fmt.Errorf("rules[%d]: %q is not a string", idx.Int(), key)
				return false
			}
		}
		return true
	})
	return ruleErr
}

func requireString(obj gjson.Result, key string) error {
	v := obj.Get(key)
	if !v.Exists() {
		return fmt.Errorf("%q is missing", key)
	}
	if v.Type != gjson.String {
		return fmt.Errorf("%q is not a string", key)
	}
	return nil
}

// StripFence removes one enclosing markdown code fence (``` or ```json)
// from s. Text without a fence is returned as is; an opening fence with
// no closing one reports false.
func StripFence(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s, true
	}
	nl := strings.IndexByte(s, '\n')
	if nl == -1 {
		return "", false
	}
	if lang := strings.TrimSpace(s[3:nl]); lang != "" && !strings.EqualFold(lang, "json") {
		return "", false
	}
	body := s[nl+1:]
	if !strings.HasSuffix(body, "```") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimSuffix(body, "```")), true
}

// sanitizeJSON doubles backslashes that do not start a valid JSON escape,
// e.g. C:\Users written straight into a string
func sanitizeJSON(s string) string {
	validEscapes := map[byte]bool{
		'"': true, '\\': true, '/': true,
		'b': true, 'f': true, 'n': true, 'r': true, 't': true, 'u': true,
	}

	var result strings.Builder
	inString := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString && ch == '\\' && i+1 < len(s) {
			next := s[i+1]
			if validEscapes[next] {
				result.WriteByte(ch)
				result.WriteByte(next)
				i++
				continue
			}
			result.WriteString(`\\`)
			continue
		}

		if ch == '"' {
			inString = !inString
		}
		result.WriteByte(ch)
	}

	return result.String()
}
