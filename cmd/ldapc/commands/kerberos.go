package commands

import (
	"fmt"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/KilimcininKorOglu/ldapc/internal/config"
)

// kerberosClient logs in with the keytab, or the bind password when no
// keytab is configured.
func kerberosClient(cfg *config.Config) (*krbclient.Client, error) {
	kc, err := krb5config.Load(cfg.Kerberos.Krb5Conf)
	if err != nil {
		return nil, fmt.Errorf("parse krb5.conf: %w", err)
	}
	realm := cfg.Kerberos.Realm
	if realm == "" {
		realm = kc.LibDefaults.DefaultRealm
	}

	var cl *krbclient.Client
	if cfg.Kerberos.Keytab != "" {
		kt, err := keytab.Load(cfg.Kerberos.Keytab)
		if err != nil {
			return nil, fmt.Errorf("load keytab %s: %w", cfg.Kerberos.Keytab, err)
		}
		cl = krbclient.NewWithKeytab(cfg.Bind.Username, realm, kt, kc, krbclient.DisablePAFXFAST(true))
	} else {
		cl = krbclient.NewWithPassword(cfg.Bind.Username, realm, cfg.Bind.Password, kc, krbclient.DisablePAFXFAST(true))
	}
	if err := cl.Login(); err != nil {
		return nil, fmt.Errorf("kerberos login as %s@%s: %w", cfg.Bind.Username, realm, err)
	}
	return cl, nil
}
