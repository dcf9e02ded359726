package token

import "golang.org/x/oauth2/endpoints"

// Provider keys. The engine is extendable: RegisterProvider adds more.
const (
	ProviderGoogle   = "google"
	ProviderDropbox  = "dropbox"
	ProviderOneDrive = "onedrive"
)

func defaultTokenURLs() map[string]string {
	return map[string]string{
		ProviderGoogle:   endpoints.Google.TokenURL,
		ProviderDropbox:  endpoints.Dropbox.TokenURL,
		ProviderOneDrive: endpoints.Microsoft.TokenURL,
	}
}
