package backend

// Identity names one selectable source of language-model inference.
// Immutable once resolved for a process lifetime.
type Identity string

const (
	// RemoteManaged is the hosted default for zero-config users.
	RemoteManaged Identity = "remote-managed"
	// LocalOpenAICompatible is a user-supplied local server speaking the
	// OpenAI wire format.
	LocalOpenAICompatible Identity = "local-openai-compatible"
	// LocalOllama is an auto-detected local Ollama instance.
	LocalOllama Identity = "local-ollama"
	// VendorOpenAI and VendorAnthropic talk to the vendor API directly
	// with an API key.
	VendorOpenAI    Identity = "vendor-openai"
	VendorAnthropic Identity = "vendor-anthropic"
	// PrivateInference is a self-hosted remote inference deployment.
	PrivateInference Identity = "private-inference"
)

// All lists every valid identity, in no particular order.
func All() []Identity {
	return []Identity{
		RemoteManaged,
		LocalOpenAICompatible,
		LocalOllama,
		VendorOpenAI,
		VendorAnthropic,
		PrivateInference,
	}
}

// ParseIdentity maps a configuration string to an Identity.
func ParseIdentity(s string) (Identity, bool) {
	for _, id := range All() {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

// Valid reports whether the identity is a member of the closed set.
func (i Identity) Valid() bool {
	_, ok := ParseIdentity(string(i))
	return ok
}

// Local reports whether the identity is served from the user's machine.
// Local identities never perform remote authentication calls.
func (i Identity) Local() bool {
	return i == LocalOpenAICompatible || i == LocalOllama
}

// RequiresAuth reports whether the identity needs a credential before the
// provider chain may be built.
func (i Identity) RequiresAuth() bool {
	return !i.Local()
}

func (i Identity) String() string { return string(i) }
