package alphavantage

// SearchResponse is the SYMBOL_SEARCH payload. Keys are numbered by the provider.
type SearchResponse struct {
	BestMatches []Match `json:"bestMatches"`
	Notice
}

type Match struct {
	Symbol      string `json:"1. symbol"`
	Name        string `json:"2. name"`
	Type        string `json:"3. type"`
	Region      string `json:"4. region"`
	MarketOpen  string `json:"5. marketOpen"`
	MarketClose string `json:"6. marketClose"`
	Timezone    string `json:"7. timezone"`
	Currency    string `json:"8. currency"`
	MatchScore  string `json:"9. matchScore"`
}

// Notice is the JSON body returned in place of data when a request is
// rejected, typically for rate limiting on the demo key.
type Notice struct {
	Note         string `json:"Note,omitempty"`
	Information  string `json:"Information,omitempty"`
	ErrorMessage string `json:"Error Message,omitempty"`
}

// Message returns the first non-empty notice text.
func (n Notice) Message() string {
	switch {
	case n.ErrorMessage != "":
		return n.ErrorMessage
	case n.Note != "":
		return n.Note
	}
	return n.Information
}

// ListingColumns is the documented LISTING_STATUS column order.
var ListingColumns = []string{"symbol", "name", "exchange", "assetType", "ipoDate", "delistingDate", "status"}
