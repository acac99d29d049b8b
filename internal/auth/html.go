package auth

// loginPageHTML is the interactive login form served on GET /. The form
// posts to /login via fetch and closes the tab after a successful login.
const loginPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Payload CMS Authentication</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            max-width: 400px;
            margin: 50px auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        h1 { color: #333; text-align: center; }
        .form-group { margin-bottom: 20px; }
        label { display: block; margin-bottom: 5px; font-weight: bold; }
        input {
            width: 100%;
            padding: 10px;
            border: 1px solid #ddd;
            border-radius: 4px;
            box-sizing: border-box;
        }
        button {
            width: 100%;
            padding: 12px;
            background-color: #007bff;
            color: white;
            border: none;
            border-radius: 4px;
            cursor: pointer;
            font-size: 16px;
        }
        button:hover { background-color: #0056b3; }
        .notice {
            margin-top: 10px;
            padding: 10px;
            border-radius: 4px;
            display: none;
        }
        .error { color: #dc3545; background-color: #f8d7da; border: 1px solid #f5c6cb; }
        .success { color: #155724; background-color: #d4edda; border: 1px solid #c3e6cb; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Payload CMS Login</h1>
        <p>Please enter your credentials to authenticate with Payload CMS.</p>

        <form id="loginForm">
            <div class="form-group">
                <label for="email">Email:</label>
                <input type="email" id="email" name="email" required>
            </div>
            <div class="form-group">
                <label for="password">Password:</label>
                <input type="password" id="password" name="password" required>
            </div>
            <div class="form-group">
                <label for="collection">Collection:</label>
                <input type="text" id="collection" name="collection" value="users">
            </div>
            <button type="submit">Login</button>
        </form>

        <div id="error" class="notice error"></div>
        <div id="success" class="notice success"></div>
    </div>

    <script>
        document.getElementById('loginForm').addEventListener('submit', async function(e) {
            e.preventDefault();

            const errorDiv = document.getElementById('error');
            const successDiv = document.getElementById('success');
            errorDiv.style.display = 'none';
            successDiv.style.display = 'none';

            try {
                const response = await fetch('/login', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/x-www-form-urlencoded' },
                    body: new URLSearchParams({
                        email: document.getElementById('email').value,
                        password: document.getElementById('password').value,
                        collection: document.getElementById('collection').value
                    })
                });
                const result = await response.json();

                if (result.success) {
                    successDiv.textContent = 'Authentication successful! This window will close automatically.';
                    successDiv.style.display = 'block';
                    setTimeout(() => { window.close(); }, 1500);
                } else {
                    errorDiv.textContent = result.message || 'Authentication failed';
                    errorDiv.style.display = 'block';
                }
            } catch (err) {
                errorDiv.textContent = 'An error occurred during authentication';
                errorDiv.style.display = 'block';
            }
        });
    </script>
</body>
</html>
`
