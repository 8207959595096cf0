package testext

import (
	"github.com/monadicstack/calculator/rpc"
	"github.com/monadicstack/calculator/schema"
	"github.com/stretchr/testify/suite"
)

// ServerSuite is a test suite that runs every test case against a fresh in-memory calculator
// server. Tweak Server (divide-by-zero policy, delays, failures) at the top of your test before
// making any calls.
//
//	func (suite *FooSuite) TestDivide() {
//	    suite.Server.DivideByZero = testext.DivideByZeroInfinity
//	    client := suite.NewClient()
//	    ...
//	}
type ServerSuite struct {
	suite.Suite
	Server *CalculatorServer
}

// SetupTest starts a new server for the upcoming test case.
func (suite *ServerSuite) SetupTest() {
	s, err := schema.Default()
	suite.Require().NoError(err)

	suite.Server = NewCalculatorServer(s)
	suite.Server.Start()
}

// TearDownTest shuts down the current test's server.
func (suite *ServerSuite) TearDownTest() {
	suite.Server.Stop()
}

// NewClient creates an RPC client connected to the current test's server. The client is closed
// automatically once the test completes, so you only need to close it yourself if closing is
// what you're testing.
func (suite *ServerSuite) NewClient(options ...rpc.ClientOption) *rpc.Client {
	options = append([]rpc.ClientOption{rpc.WithDialer(suite.Server.Dialer())}, options...)

	client, err := rpc.NewClient(Address, options...)
	suite.Require().NoError(err)
	suite.T().Cleanup(func() {
		_ = client.Close()
	})
	return client
}
