package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const languageEnum = `{"type": "string", "enum": ["uz", "ru", "en"]}`

var requestSchemas = map[string]string{
	"chat.json": `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"message": {"type": "string", "minLength": 1, "maxLength": 4000},
			"session_id": {"type": "string", "maxLength": 128},
			"user_id": {"type": "string", "maxLength": 128},
			"language": ` + languageEnum + `
		}
	}`,
	"recommend.json": `{
		"type": "object",
		"required": ["query"],
		"properties": {
			"query": {"type": "string", "minLength": 1, "maxLength": 1000},
			"budget_min": {"type": "number", "minimum": 0},
			"budget_max": {"type": "number", "minimum": 0},
			"focus": {"type": "string", "maxLength": 64},
			"session_id": {"type": "string", "maxLength": 128},
			"user_id": {"type": "string", "maxLength": 128},
			"language": ` + languageEnum + `
		}
	}`,
	"compare.json": `{
		"type": "object",
		"required": ["product_names"],
		"properties": {
			"product_names": {
				"type": "array",
				"minItems": 2,
				"maxItems": 5,
				"items": {"type": "string", "minLength": 1, "maxLength": 200}
			},
			"session_id": {"type": "string", "maxLength": 128},
			"user_id": {"type": "string", "maxLength": 128},
			"language": ` + languageEnum + `
		}
	}`,
	"session.json": `{
		"type": "object",
		"properties": {
			"user_id": {"type": "string", "maxLength": 128},
			"anonymous_session_id": {"type": "string", "maxLength": 128}
		}
	}`,
}

// schemas 请求体 JSON Schema，构建路由时编译一次
type schemas struct {
	chat      *jsonschema.Schema
	recommend *jsonschema.Schema
	compare   *jsonschema.Schema
	session   *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for name, src := range requestSchemas {
		if err := c.AddResource(name, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("加载 schema %s 失败: %w", name, err)
		}
	}
	s := &schemas{}
	for name, dst := range map[string]**jsonschema.Schema{
		"chat.json":      &s.chat,
		"recommend.json": &s.recommend,
		"compare.json":   &s.compare,
		"session.json":   &s.session,
	} {
		sch, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("编译 schema %s 失败: %w", name, err)
		}
		*dst = sch
	}
	return s, nil
}

// validate 校验原始请求体；返回给客户端的 detail
func validate(sch *jsonschema.Schema, body []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "request body is not valid JSON", false
	}
	if _, err := dec.Token(); err != io.EOF {
		return "request body is not valid JSON", false
	}
	if err := sch.Validate(v); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return validationDetail(ve), false
		}
		return err.Error(), false
	}
	return "", true
}

// validationDetail 取最深一层的错误，如 "/message: length must be <= 4000"
func validationDetail(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
