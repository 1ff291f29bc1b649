package sasl

// Plain is the PLAIN mechanism (RFC 4616): a single initial response of
// authzid NUL authcid NUL password.
type Plain struct {
	AuthzID  string
	Username string
	Password string
}

func (p *Plain) Name() string { return "PLAIN" }

func (p *Plain) Step(challenge []byte) ([]byte, error) {
	if challenge != nil {
		return nil, verifyError(p.Name(), ErrUnexpectedChallenge, "single-round mechanism")
	}
	if p.Username == "" || p.Password == "" {
		return nil, configError(p.Name(), ErrMissingCredentials, "username and password are required")
	}
	out := make([]byte, 0, len(p.AuthzID)+len(p.Username)+len(p.Password)+2)
	out = append(out, p.AuthzID...)
	out = append(out, 0)
	out = append(out, p.Username...)
	out = append(out, 0)
	out = append(out, p.Password...)
	return out, nil
}

// External is the EXTERNAL mechanism (RFC 4422 appendix A). The identity
// comes from the transport; AuthzID optionally requests another one.
type External struct {
	AuthzID string
}

func (e *External) Name() string { return "EXTERNAL" }

func (e *External) Step(challenge []byte) ([]byte, error) {
	if challenge != nil {
		return nil, verifyError(e.Name(), ErrUnexpectedChallenge, "single-round mechanism")
	}
	return []byte(e.AuthzID), nil
}
