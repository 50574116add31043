// Package storyforge provides a typed Go client for the storyforge
// daemon's file protocol. Jobs are dropped into the daemon's inbox as
// JSON files and results are read back from its outbox, so the client
// works against any running daemon without a network listener.
//
// Usage:
//
//	sf, err := storyforge.New()
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
//	defer cancel()
//	res, err := sf.Generate(ctx, storyforge.Job{
//	    URL:   "https://demo.opencart.com",
//	    Story: "Search for 'laptop', select first product, add to cart",
//	})
//	if err == nil {
//	    fmt.Println(res.TestFile)
//	}
//
// The SDK links directly against internal packages for a single source
// of truth on the job wire format. External users import
// github.com/ppiankov/storyforge/sdk/go/storyforge.
package storyforge
