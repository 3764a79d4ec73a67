package account

import (
	"testing"
	"time"

	"github.com/trezcool/tasnifu/core"
)

func newTestAccount(t *testing.T) Account {
	t.Helper()

	acct := Account{ID: "7a6f128b-6e26-4c4e-8e2f-06c81bb1b90d", Email: "test@example.com", Role: RoleTeacher}
	acct.SetRoleID("T-00000001-abcd")
	if err := acct.SetPassword("t0pS3cr3t"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	return acct
}

func Test_verifyToken(t *testing.T) {
	defer func() { NowFunc = time.Now }()

	conf := core.Conf
	acct := newTestAccount(t)

	token, err := MakeToken(conf, acct)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	if err = verifyToken(conf, acct, token); err != nil {
		t.Errorf("verifyToken() failed: %v", err)
	}
	if err = verifyToken(conf, acct, ""); err != errInvalidToken {
		t.Errorf("verifyToken(empty) = %v; want %v", err, errInvalidToken)
	}
	if err = verifyToken(conf, acct, token+"lol"); err != errInvalidToken {
		t.Errorf("verifyToken(tampered) = %v; want %v", err, errInvalidToken)
	}

	// invalidated by use: a password change voids the token
	usedAcct := acct
	if err = usedAcct.SetPassword("n3wS3cr3t"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if err = verifyToken(conf, usedAcct, token); err != errInvalidToken {
		t.Errorf("verifyToken(password changed) = %v; want %v", err, errInvalidToken)
	}

	// invalidated by any subsequent login
	loggedInAcct := acct
	loggedInAcct.LastLogin = time.Now().UTC()
	if err = verifyToken(conf, loggedInAcct, token); err != errInvalidToken {
		t.Errorf("verifyToken(logged in) = %v; want %v", err, errInvalidToken)
	}

	// expired
	NowFunc = func() time.Time { return time.Now().Add(-(conf.PasswordResetTimeoutDelta + 48*time.Hour)) }
	oldToken, err := MakeToken(conf, acct)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	if err = verifyToken(conf, acct, oldToken); err != errTokenExpired {
		t.Errorf("verifyToken(expired) = %v; want %v", err, errTokenExpired)
	}
}

func Test_decodeUID(t *testing.T) {
	acct := newTestAccount(t)

	id, err := decodeUID(EncodeUID(acct))
	if err != nil {
		t.Fatalf("decodeUID() failed: %v", err)
	}
	if id != acct.ID {
		t.Errorf("decodeUID() = %v; want %v", id, acct.ID)
	}

	if _, err = decodeUID("?!#not-base64"); err == nil {
		t.Error("decodeUID(garbage) expected an error")
	}
}
