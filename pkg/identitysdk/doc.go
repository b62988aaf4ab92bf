// Package identitysdk is the client for the EduMall identity service.
//
// The service speaks plain JSON over HTTP: a phone number receives a
// one-time code, the code is exchanged for a user profile and a token pair,
// and the access token authorises profile reads and logout.
//
//	tokens := identitysdk.NewMemoryTokenStore()
//	client := identitysdk.New("https://api.edumall.in", tokens)
//
//	if _, err := client.SendOTP(ctx, "9876543210"); err != nil {
//		return err
//	}
//	resp, err := client.VerifyOTP(ctx, identitysdk.VerifyOTPRequest{
//		Phone: "9876543210",
//		OTP:   "123456",
//	})
//
// VerifyOTP persists the issued token pair through the TokenStore. Later
// authenticated calls read it back and refresh it once when the service
// answers 401. The request and response types are shared with the server
// handlers so both sides agree on the wire format.
package identitysdk
