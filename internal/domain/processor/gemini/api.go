package gemini

import "context"

// Part is one piece of generated or supplied content.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is the model's request to invoke a declared function.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse feeds a tool result back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Content is one turn of the generation conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// FunctionDeclaration describes one callable tool. Parameters is a
// sanitized JSON schema.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool groups function declarations for a request.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// Request is a generateContent request body.
type Request struct {
	Model             string    `json:"-"`
	Contents          []Content `json:"contents"`
	Tools             []Tool    `json:"tools,omitempty"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content Content `json:"content"`
}

// Response is a generateContent response body.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// functionCalls collects the function call parts of the first candidate.
func (r *Response) functionCalls() []FunctionCall {
	if len(r.Candidates) == 0 {
		return nil
	}
	var calls []FunctionCall
	for _, part := range r.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}

// text concatenates the text parts of the first candidate.
func (r *Response) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	out := ""
	for _, part := range r.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

// ResponseStream yields streamed responses until io.EOF.
type ResponseStream interface {
	Recv() (*Response, error)
	Close() error
}

// API issues generation calls against the Gemini API. Tool-calling
// rounds use the non-streaming call; plain answers stream.
type API interface {
	GenerateContent(ctx context.Context, req *Request) (*Response, error)
	StreamGenerateContent(ctx context.Context, req *Request) (ResponseStream, error)
}
