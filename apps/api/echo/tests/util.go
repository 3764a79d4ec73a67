package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/tasnifu/apps/api/echo"
	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
	"github.com/trezcool/tasnifu/core/notification"
	"github.com/trezcool/tasnifu/core/thesis"
	emailsvc "github.com/trezcool/tasnifu/services/email"
	googlesvc "github.com/trezcool/tasnifu/services/google"
	inmemdb "github.com/trezcool/tasnifu/storage/database/inmem"
	testutil "github.com/trezcool/tasnifu/tests"
)

var (
	acctRepo   account.Repository
	thesisRepo thesis.Repository
	notifRepo  notification.Repository

	acctSvc  account.Service
	notifSvc notification.Service
	google   *googleStub

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// googleStub stands in for the Google APIs.
type googleStub struct {
	userInfo   googlesvc.UserInfo
	infoErr    error
	captchaErr error
}

var _ echoapi.GoogleClient = (*googleStub)(nil)

func (g *googleStub) GetUserInfo(context.Context, string) (googlesvc.UserInfo, error) {
	return g.userInfo, g.infoErr
}

func (g *googleStub) VerifyCaptcha(context.Context, string) error {
	return g.captchaErr
}

func setup(t *testing.T) echoapi.Server {
	t.Helper()

	core.Conf.Debug = false
	core.Conf.TestMode = true
	core.Conf.RecaptchaSecret = ""
	core.Conf.MaxLoginAttempts = 3
	core.Conf.LoginLockoutDelta = 15 * time.Minute
	core.Conf.AdminEmails = []string{"root@example.edu"}
	core.Conf.StudentEmailDomain = "students.example.edu"

	// set up DB & repos
	db := inmemdb.NewDB()
	acctRepo = inmemdb.NewAccountRepository(db)
	thesisRepo = inmemdb.NewThesisRepository(db)
	notifRepo = inmemdb.NewNotificationRepository(db)

	// set up services
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock()
	acctSvc = account.NewService(acctRepo, mailSvc, core.Conf, logger)
	notifSvc = notification.NewService(notifRepo)
	thesisSvc := thesis.NewService(thesisRepo, notifSvc, mailSvc, logger)
	google = &googleStub{}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	thesis.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)

	// set up server
	return echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       core.Conf,
			Logger:     logger,
			AccountSvc: acctSvc,
			ThesisSvc:  thesisSvc,
			NotifSvc:   notifSvc,
			Google:     google,
			Validate:   validate,
			Translator: translator,
		},
	)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, acct account.Account) string {
	t.Helper()

	token, err := echoapi.GenerateToken(echoapi.GetAccountClaims(acct))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// getRefreshableToken issues a token with a fixed original-issue timestamp.
func getRefreshableToken(t *testing.T, acct account.Account, origIat int64) string {
	t.Helper()

	token, err := echoapi.GenerateToken(echoapi.GetAccountClaims(acct, origIat))
	if err != nil {
		t.Fatalf("getRefreshableToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarchallObj() failed: %v", err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
