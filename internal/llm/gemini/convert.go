package gemini

import (
	"strings"

	"google.golang.org/genai"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
)

func buildConfig(req *llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.System},
			},
		}
	}

	if len(req.Tools) > 0 {
		config.Tools = toTools(req.Tools)
	}

	if req.IncludeThoughts {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	if len(req.Modalities) > 0 {
		config.ResponseModalities = req.Modalities
	}

	if req.ResponseMIMEType != "" {
		config.ResponseMIMEType = req.ResponseMIMEType
	}

	return config
}

func toTools(decls []domain.ToolDeclaration) []*genai.Tool {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toSchema(d.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: out}}
}

// toSchema converts the JSON-schema subset to Gemini's upper-case typed schema.
func toSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}

func toContents(turns []domain.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		content := &genai.Content{}
		switch t.Role {
		case domain.RoleModel:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}
		for _, p := range t.Parts {
			content.Parts = append(content.Parts, toPart(p))
		}
		out = append(out, content)
	}
	return out
}

func toPart(p domain.Part) *genai.Part {
	gp := &genai.Part{
		Text:             p.Text,
		Thought:          p.Thought,
		ThoughtSignature: p.Signature,
	}
	if p.InlineData != nil {
		gp.InlineData = &genai.Blob{Data: p.InlineData.Data, MIMEType: p.InlineData.MIMEType}
	}
	if p.FileData != nil {
		gp.FileData = &genai.FileData{FileURI: p.FileData.FileURI, MIMEType: p.FileData.MIMEType}
	}
	if p.FunctionCall != nil {
		gp.FunctionCall = &genai.FunctionCall{ID: p.FunctionCall.ID, Name: p.FunctionCall.Name, Args: p.FunctionCall.Args}
	}
	if p.FunctionResponse != nil {
		gp.FunctionResponse = &genai.FunctionResponse{
			ID:       p.FunctionResponse.ID,
			Name:     p.FunctionResponse.Name,
			Response: p.FunctionResponse.Response,
		}
	}
	return gp
}

// fromResponse flattens the first candidate.
func fromResponse(model string, resp *genai.GenerateContentResponse) *llm.Response {
	out := &llm.Response{Model: model}
	if resp == nil || len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return out
	}
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		p := domain.Part{
			Text:      part.Text,
			Thought:   part.Thought,
			Signature: part.ThoughtSignature,
		}
		if part.InlineData != nil {
			p.InlineData = &domain.Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
		}
		if part.FileData != nil {
			p.FileData = &domain.FileData{FileURI: part.FileData.FileURI, MIMEType: part.FileData.MIMEType}
		}
		if part.FunctionCall != nil {
			p.FunctionCall = &domain.FunctionCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Args: part.FunctionCall.Args}
		}
		out.Parts = append(out.Parts, p)
	}
	return out
}
