package e2e

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite provides a test suite for end-to-end tests
type E2ETestSuite struct {
	suite.Suite
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	expect  playwright.PlaywrightAssertions
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	browser, err := pw.Chromium.Launch()
	require.NoError(suite.T(), err, "could not launch chromium")
	suite.browser = browser

	suite.expect = playwright.NewPlaywrightAssertions()
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.browser != nil {
		suite.browser.Close()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

// SetupTest runs before each test
func (suite *E2ETestSuite) SetupTest() {
	page, err := suite.browser.NewPage()
	require.NoError(suite.T(), err, "could not create page")
	suite.page = page

	_, err = suite.page.Goto(appURL)
	require.NoError(suite.T(), err, "could not navigate to app")
}

// TearDownTest runs after each test
func (suite *E2ETestSuite) TearDownTest() {
	if suite.page != nil {
		suite.page.Close()
	}
}

func (suite *E2ETestSuite) login(password string) {
	// Unauthenticated visitors land on the login form
	err := suite.expect.Locator(suite.page.Locator(".login-form")).ToBeVisible()
	require.NoError(suite.T(), err, "login form not visible")

	err = suite.page.Locator("input[name=password]").Fill(password)
	require.NoError(suite.T(), err, "failed to fill password")

	err = suite.page.Locator(".login-btn").Click()
	require.NoError(suite.T(), err, "failed to click login")
}

func (suite *E2ETestSuite) TestWrongPasswordShowsError() {
	suite.login("not-the-password")

	err := suite.expect.Locator(suite.page.Locator("#login-error")).ToHaveText("invalid password")
	require.NoError(suite.T(), err, "login error not shown")
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	suite.login(testPassword)

	// Wait for redirect to the main page
	err := suite.expect.Locator(suite.page.Locator(".list-screen")).ToBeVisible()
	require.NoError(suite.T(), err, "did not reach main page after login")

	err = suite.expect.Locator(suite.page.Locator("#transaction-count")).ToHaveText("0")
	require.NoError(suite.T(), err, "summary should start empty")

	// Add an expense
	_, err = suite.page.Locator("select[name=type]").SelectOption(playwright.SelectOptionValues{
		Values: &[]string{"expense"},
	})
	require.NoError(suite.T(), err, "failed to select type")

	err = suite.page.Locator("input[name=amount]").Fill("12.50")
	require.NoError(suite.T(), err, "failed to fill amount")

	err = suite.page.Locator("input[name=category]").Fill("Lunch")
	require.NoError(suite.T(), err, "failed to fill category")

	err = suite.page.Locator("input[name=description]").Fill("Noodles")
	require.NoError(suite.T(), err, "failed to fill description")

	err = suite.page.Locator("button.submit").Click()
	require.NoError(suite.T(), err, "failed to submit transaction")

	// Verify in list
	err = suite.expect.Locator(suite.page.Locator(".transaction-item")).ToHaveCount(1)
	require.NoError(suite.T(), err, "transaction item count mismatch")

	item := suite.page.Locator(".transaction-item").First()
	err = suite.expect.Locator(item.Locator(".transaction-details strong")).ToHaveText("Lunch")
	require.NoError(suite.T(), err, "category mismatch")

	err = suite.expect.Locator(item.Locator(".transaction-amount")).ToContainText("12.50")
	require.NoError(suite.T(), err, "amount mismatch")

	// Summary reflects today's expense
	err = suite.expect.Locator(suite.page.Locator("#total-expense")).ToHaveText("12.50")
	require.NoError(suite.T(), err, "summary expense mismatch")

	err = suite.expect.Locator(suite.page.Locator("#balance")).ToHaveText("-12.50")
	require.NoError(suite.T(), err, "summary balance mismatch")

	// Delete it again
	err = item.Locator(".delete-btn").Click()
	require.NoError(suite.T(), err, "failed to delete transaction")

	err = suite.expect.Locator(suite.page.Locator(".transaction-item")).ToHaveCount(0)
	require.NoError(suite.T(), err, "transaction not removed")
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
