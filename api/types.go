package api

// TokenizeRequest is the request passed to [Client.Tokenize].
type TokenizeRequest struct {
	// Text is the input to encode. An empty text encodes to no tokens.
	Text string `json:"text"`

	// MaxTokens bounds the number of tokens returned. Encoding fails rather
	// than truncating when the bound is exceeded. Zero uses the server default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// TokenizeResponse is the response from [Client.Tokenize].
type TokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
	Count  int     `json:"count"`
}

// DetokenizeRequest is the request passed to [Client.Detokenize].
type DetokenizeRequest struct {
	Tokens []int32 `json:"tokens"`
}

// DetokenizeResponse is the response from [Client.Detokenize]. Bytes that
// are not valid UTF-8 are replaced when the text is serialized.
type DetokenizeResponse struct {
	Text string `json:"text"`
}

// ShowResponse describes the tokenizer a server has loaded.
type ShowResponse struct {
	Loaded    bool   `json:"loaded"`
	VocabSize int    `json:"vocab_size"`
	Merges    int    `json:"merges"`
	MaxTokens int    `json:"max_tokens"`
	Scan      string `json:"scan"`
	Version   string `json:"version"`
}
