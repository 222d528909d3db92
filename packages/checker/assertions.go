package checker

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// numericPattern accepts an optional minus sign, digits and an optional
// fractional part. Whitespace, a plus sign and exponents are rejected.
var numericPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func (c *Checker) fail(f Failure) {
	f.URI = c.uri
	c.failures = append(c.failures, f)
}

// HasResponseCode requests the live status code and compares it with code.
func (c *Checker) HasResponseCode(code int) *Checker {
	c.testCount++

	received, err := c.HTTPResponseCode()
	if err == nil && received == code {
		return c
	}

	receivedStr := strconv.Itoa(received)
	if err != nil {
		receivedStr = fmt.Sprintf("unavailable (%v)", err)
	}
	c.fail(Failure{
		Kind:     KindResponseCode,
		Expected: strconv.Itoa(code),
		Received: receivedStr,
		Message: renderFailure(c.uri, "HTTP return code error",
			detail{"Expected", strconv.Itoa(code)},
			detail{"Received", receivedStr},
		),
	})
	return c
}

// IsJSON passes when the content is a JSON object or array. Content is
// fetched first when the cache is empty.
func (c *Checker) IsJSON() *Checker {
	c.testCount++
	c.ensureContent()

	if isJSONDocument(c.content) {
		return c
	}

	c.fail(Failure{
		Kind:     KindInvalidJSON,
		Received: truncate(c.content),
		Message:  renderFailure(c.uri, "Content is not valid JSON"),
	})
	return c
}

func isJSONDocument(content string) bool {
	if !gjson.Valid(content) {
		return false
	}
	doc := gjson.Parse(content)
	return doc.IsObject() || doc.IsArray()
}

// IsNumeric passes when the cached content is a plain decimal number.
func (c *Checker) IsNumeric() *Checker {
	c.testCount++

	if numericPattern.MatchString(c.content) {
		return c
	}

	c.fail(Failure{
		Kind:     KindNotNumeric,
		Received: truncate(c.content),
		Message: renderFailure(c.uri, "Content is not numeric",
			detail{"Received", truncate(c.content)},
		),
	})
	return c
}

// HasKey passes when the content is a JSON object with key among its top-level keys.
func (c *Checker) HasKey(key string) *Checker {
	c.testCount++
	c.ensureContent()

	if hasTopLevelKey(c.content, key) {
		return c
	}

	c.fail(Failure{
		Kind:     KindMissingKey,
		Expected: key,
		Message: renderFailure(c.uri, "Key is missing",
			detail{"Expected key", key},
		),
	})
	return c
}

func hasTopLevelKey(content, key string) bool {
	if !gjson.Valid(content) {
		return false
	}
	doc := gjson.Parse(content)
	if !doc.IsObject() {
		return false
	}
	found := false
	doc.ForEach(func(k, _ gjson.Result) bool {
		if k.String() == key {
			found = true
			return false
		}
		return true
	})
	return found
}

// HasKeys runs HasKey for every key and counts the batch itself as one more test.
func (c *Checker) HasKeys(keys []string) *Checker {
	for _, key := range keys {
		c.HasKey(key)
	}
	c.testCount++
	return c
}

// IsEqualTo compares the cached content with expected byte for byte.
func (c *Checker) IsEqualTo(expected string) *Checker {
	c.testCount++

	if c.content == expected {
		return c
	}

	c.fail(Failure{
		Kind:     KindContentMismatch,
		Expected: expected,
		Received: truncate(c.content),
		Message: renderFailure(c.uri, "Content mismatch",
			detail{"Expected", expected},
			detail{"Received", truncate(c.content)},
		),
	})
	return c
}

// Contains passes when substring occurs in the cached content.
func (c *Checker) Contains(substring string) *Checker {
	c.testCount++

	if strings.Contains(c.content, substring) {
		return c
	}

	c.fail(Failure{
		Kind:     KindMissingSubstring,
		Expected: substring,
		Message: renderFailure(c.uri, "Content is missing a string",
			detail{"Expected to contain", substring},
		),
	})
	return c
}

// MatchesSchema validates the content against the JSON Schema stored in schemaFile.
func (c *Checker) MatchesSchema(schemaFile string) *Checker {
	c.testCount++
	c.ensureContent()

	problems, err := c.validateSchema(schemaFile)
	if err == nil && len(problems) == 0 {
		return c
	}

	var received string
	if err != nil {
		received = err.Error()
	} else {
		received = strings.Join(problems, "; ")
	}
	c.fail(Failure{
		Kind:     KindSchemaMismatch,
		Expected: schemaFile,
		Received: received,
		Message: renderFailure(c.uri, "Content does not match schema",
			detail{"Schema", schemaFile},
			detail{"Problems", received},
		),
	})
	return c
}

func (c *Checker) validateSchema(schemaFile string) ([]string, error) {
	path := schemaFile
	if !filepath.IsAbs(path) && c.schemaDir != "" {
		path = filepath.Join(c.schemaDir, path)
	}

	schemaData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewStringLoader(c.content),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems, nil
}
