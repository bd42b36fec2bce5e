// Package sdk is a typed client for `smartreviewer serve mcp`.
//
// Each MCP tool has one method that decodes the tool's JSON text into the
// domain types. Transport failures are retried with fortify; tool errors
// such as an unknown check item are not. Use IsNotFound to tell a missing
// review or evaluation from other failures.
//
//	transport, _ := client.NewStdioTransport("smartreviewer", "serve", "mcp")
//	c := sdk.NewClient(transport, sdk.WithDocumentType(review.DocBasicDesign))
//	defer c.Close()
//
//	if _, err := c.Initialize(ctx); err != nil {
//		return err
//	}
//	if err := c.Compatible(ctx); err != nil {
//		return err
//	}
//	res, err := c.RunReview(ctx, sdk.ReviewRequest{DocumentPath: "docs/design.md"})
package sdk
