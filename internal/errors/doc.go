// Package errors provides structured, actionable error messages for uprename.
//
// Errors carry a code, a plain-language explanation and an optional hint.
// Errors about a request body can point at the byte where scanning stopped,
// and Format shows the escaped bytes around it.
//
// # Error Codes
//
//   - E1xx: configuration
//   - E2xx: storage backends
//   - E3xx: request bodies
//   - E4xx: HTTP server
//   - E5xx: command line
//
// # Usage
//
//	err := errors.New("E300").
//	    WithLocation("body.bin", 212).
//	    WithSuggestion("Check that the boundary is 12 to 52 bytes long")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E300: Malformed upload body
//	//
//	//   body.bin (byte 212)
//	//
//	//   │ data; name="file1.md5"\r\n\r\n\r\n--------
//	//   │                               ^
//	//
//	//   Hint: Check that the boundary is 12 to 52 bytes long
package errors
