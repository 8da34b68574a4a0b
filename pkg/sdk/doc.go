// Package memrag provides a Go client for the memrag HTTP API.
//
// The client wraps the answer endpoint and the session endpoints
// exposed by `memrag serve`:
//
//	client, _ := memrag.New("http://localhost:8080", memrag.WithAPIKey(key))
//	ans, _ := client.Answer(ctx, "", "O que diz o artigo 5 da Constituição?")
//	fmt.Println(ans.Text)
//
//	// follow-up in the same session
//	ans, _ = client.Answer(ctx, ans.SessionID, "E o parágrafo único?")
//
//	hist, _ := client.Sessions().Get(ctx, ans.SessionID)
//	_ = client.Sessions().Delete(ctx, ans.SessionID)
//
// Errors returned by the server map onto the sentinel errors of this
// package and can be checked with errors.Is. A degraded answer is also
// returned as an *APIError carrying the apology text in Answer.
package memrag
