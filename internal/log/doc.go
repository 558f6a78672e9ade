// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The crawler logs every request URL it issues, and search API URLs carry
// the API key and engine id as query parameters. The SecureHandler masks:
//   - attributes whose key names a credential (key, cx, api_key, token, ...)
//   - string values that look like credentials (Google API keys, bearer tokens)
//   - the key and cx query parameters of any URL-valued attribute
//
// # Usage
//
//	logger, closer, err := log.NewLogger(log.Options{
//	    Writer:  os.Stderr,
//	    Verbose: true,
//	    File:    "/var/log/imagecrawl.log", // optional, rotated by lumberjack
//	})
//	defer closer.Close()
//
//	logger.Info("querying", "url", "https://www.googleapis.com/customsearch/v1?key=AIza...&q=iphone")
//	// url=https://www.googleapis.com/customsearch/v1?key=***REDACTED***&q=iphone
package log
